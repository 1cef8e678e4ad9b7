package utils

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RenderTemplate substitutes {{variable}} placeholders in an outreach
// template with values from vars. Unknown placeholders are left intact so
// the caller can spot unrendered variables in drafts.
func RenderTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// pkrPrinter groups digits for en locales (12,500,000).
var pkrPrinter = message.NewPrinter(language.English)

// FormatPKR renders a whole-rupee amount for display, e.g.
// "PKR 12,500,000".
func FormatPKR(amount int64) string {
	return pkrPrinter.Sprintf("PKR %d", amount)
}
