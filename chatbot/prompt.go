package chatbot

import "strings"

// DefaultSystemPrompt is used when neither the server configuration nor the request supplies one
const DefaultSystemPrompt = `You are a helpful, friendly assistant. Answer concisely and clearly.`

// relatedInstruction asks the model to append follow-up questions after RelatedMarker
const relatedInstruction = `

## Follow-up questions
After your answer, you may suggest up to three short follow-up questions the user might ask next.
If you do, put them at the very end of your reply, after a line containing only ` + RelatedMarker + `,
one question per line, each starting with "- ". Write nothing after the list.`

// SystemPrompt returns the system prompt for a request. The first non-empty candidate wins,
// falling back to DefaultSystemPrompt, and the follow-up question instruction is appended.
func SystemPrompt(candidates ...string) string {
	prompt := DefaultSystemPrompt
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			prompt = c
			break
		}
	}
	return prompt + relatedInstruction
}
