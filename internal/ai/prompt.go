package ai

import (
	"fmt"
	"strings"
)

const maxHistoryTurns = 10

func urgencyPrompt(message string) Prompt {
	return Prompt{
		System: `Decide whether a customer message to a small Kenyan business needs an immediate, short reply.
Messages may mix English and Swahili. Reply with one JSON object only:
{"isUrgent": true|false, "reason": "<few words>"}`,
		Messages:  []Message{{Role: "user", Content: message}},
		MaxTokens: 60,
		JSON:      true,
	}
}

func intentPrompt(req Request) Prompt {
	return Prompt{
		System: fmt.Sprintf(`Classify a customer message sent to a %s business.
Reply with one JSON object only:
{"category": "general|pricing|availability|order|delivery|complaint|booking|location|hours",
 "urgency": "low|medium|high", "requiresRealtime": true|false}`, businessType(req)),
		Messages:  []Message{{Role: "user", Content: req.Message}},
		MaxTokens: 80,
		JSON:      true,
	}
}

func urgentReplyPrompt(req Request) Prompt {
	return Prompt{
		System: businessPersona(req) + `
The customer needs a fast answer. Reply in at most two short sentences, in the customer's language.`,
		Messages:  withHistory(req),
		MaxTokens: 120,
	}
}

func qualityReplyPrompt(req Request, intent Intent) Prompt {
	return Prompt{
		System: businessPersona(req) + fmt.Sprintf(`
The customer's request is about %s. Answer helpfully and accurately, in the customer's language
(English, Swahili or a mix). Never invent prices or stock that you were not told about.`, intent.Category),
		Messages:  withHistory(req),
		MaxTokens: 400,
	}
}

func businessPersona(req Request) string {
	var b strings.Builder
	name := req.Business.Name
	if name == "" {
		name = "the business"
	}
	fmt.Fprintf(&b, "You are the WhatsApp assistant for %s, a %s", name, businessType(req))
	if req.Business.Location != "" {
		fmt.Fprintf(&b, " in %s", req.Business.Location)
	}
	b.WriteString(".")
	if len(req.Business.Services) > 0 {
		fmt.Fprintf(&b, " Services offered: %s.", strings.Join(req.Business.Services, ", "))
	}
	return b.String()
}

func businessType(req Request) string {
	if req.BusinessType == "" {
		return "small"
	}
	return req.BusinessType
}

func withHistory(req Request) []Message {
	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, Message{Role: "user", Content: req.Message})
}
