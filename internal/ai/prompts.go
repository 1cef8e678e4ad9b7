package ai

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// advisorSystemPrompt frames every advisory call. The market framing matters:
// scores calibrated for Pakistani real-estate leads differ from generic
// sales-lead heuristics.
const advisorSystemPrompt = `You are a real-estate sales advisor for the Pakistan property market.
You evaluate leads and conversations for conversion likelihood and suggest
concrete next steps. Respond with JSON only, matching the requested schema
exactly: no prose, no markdown fences, no extra keys.`

// analysisSchema describes the advisory payload the model must return. The
// schema is spelled out field by field so the unstructured reply can be
// parsed deterministically; this is the only wire contract with the model.
const analysisSchema = `Return a single JSON object with these properties:
  "score"               (number, required)  conversion score 0-100
  "sentiment"           (string, required)  one of POSITIVE, NEUTRAL, NEGATIVE
  "summary"             (string, required)  short summary of the lead's intent
  "key_points"          (array of strings, required)  up to 3 key points
  "next_action"         (string, required)  the single best next step
  "closing_probability" (number, optional)  0-100, assuming a first reply was received
  "personalized_email"  (string, optional)  a drafted professional outreach email`

// parseSchema describes the extraction payload for parseLeadFromText.
const parseSchema = `Return a single JSON object with these properties:
  "name"     (string, required)  the contact's name
  "phone"    (string, required)  phone in 03xx-xxxxxxx form when possible
  "value"    (number, required)  estimated deal value in PKR
  "source"   (string, required)  one of WHATSAPP, FACEBOOK, WALK_IN, WEBSITE
  "ai_score" (number, required)  initial conversion score 0-100 from the text's intent`

// scoreProfilePrompt builds the lead-profile evaluation prompt.
func scoreProfilePrompt(l ProfileInput) string {
	var b strings.Builder
	b.WriteString("Evaluate this real estate lead from Pakistan:\n")
	fmt.Fprintf(&b, "Name: %s\n", orUnknown(l.Name))
	fmt.Fprintf(&b, "Source: %s\n", orUnknown(l.Source))
	if l.Value > 0 {
		fmt.Fprintf(&b, "Estimated Value: PKR %d\n", l.Value)
	}
	if l.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", l.Stage)
	}
	b.WriteString(`
Task:
1. Provide a conversion score (0-100).
2. Estimate the closing probability (0-100) assuming they have just replied to our first email.
3. Write a highly personalized, professional email to build rapport with this client.
4. Provide a summary, up to 3 key points, and the next action.

`)
	b.WriteString(analysisSchema)
	return b.String()
}

// analyzeConversationPrompt builds the transcript-analysis prompt. Each
// message is tagged by who sent it so the model can track the exchange.
func analyzeConversationPrompt(messages []domain.Message, leadName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this conversation with a real estate lead named %q in Pakistan.\n", leadName)
	b.WriteString("Conversation:\n")
	for _, m := range messages {
		speaker := "Agent"
		if m.Direction == domain.DirectionInbound {
			speaker = "Lead"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	b.WriteString(`
Determine a conversion score (0-100), the overall sentiment, a short summary
of what they want, up to 3 key points, and the next action.

`)
	b.WriteString(analysisSchema)
	return b.String()
}

// parseLeadPrompt builds the free-text extraction prompt.
func parseLeadPrompt(raw string) string {
	var b strings.Builder
	b.WriteString("Extract lead information from the following text.\n")
	fmt.Fprintf(&b, "Text: %q\n\n", raw)
	b.WriteString(parseSchema)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
