package utils

import "testing"

func TestRenderTemplate(t *testing.T) {
	tmpl := "Hi {{name}}, your {{source}} inquiry about {{value}} is noted."
	vars := map[string]string{
		"name":   "Ayesha Khan",
		"source": "WHATSAPP",
		"value":  "PKR 12,500,000",
	}

	got := RenderTemplate(tmpl, vars)
	want := "Hi Ayesha Khan, your WHATSAPP inquiry about PKR 12,500,000 is noted."
	if got != want {
		t.Fatalf("RenderTemplate = %q; want %q", got, want)
	}
}

func TestRenderTemplate_UnknownPlaceholderLeftIntact(t *testing.T) {
	got := RenderTemplate("Hello {{name}}, from {{agent_name}}", map[string]string{"name": "Bilal"})
	want := "Hello Bilal, from {{agent_name}}"
	if got != want {
		t.Fatalf("RenderTemplate = %q; want %q", got, want)
	}
}

func TestRenderTemplate_RepeatedPlaceholder(t *testing.T) {
	got := RenderTemplate("{{name}} / {{name}}", map[string]string{"name": "Sara"})
	if got != "Sara / Sara" {
		t.Fatalf("RenderTemplate = %q", got)
	}
}

func TestFormatPKR(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "PKR 0"},
		{999, "PKR 999"},
		{2500000, "PKR 2,500,000"},
		{12500000, "PKR 12,500,000"},
	}
	for _, tc := range cases {
		if got := FormatPKR(tc.in); got != tc.want {
			t.Fatalf("FormatPKR(%d) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
