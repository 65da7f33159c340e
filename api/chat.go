package api

//Role is a chat participant
type Role string

//Roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

//Request limits
const (
	MaxMessages        = 200
	MaxSystemPromptLen = 10000
	MaxModelLen        = 100
)

//ChatMessage is one turn of conversation history
type ChatMessage struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

//ChatTurnRequest is the body of a chat request. Messages are ordered oldest first.
type ChatTurnRequest struct {
	Messages     []ChatMessage `json:"messages" validate:"required,min=1,max=200,dive"`
	Model        string        `json:"model,omitempty" validate:"max=100"`
	SystemPrompt string        `json:"systemPrompt,omitempty" validate:"max=10000"`
	Tools        bool          `json:"tools,omitempty"`
}

//LastUserMessage returns the content of the most recent user message, or an empty string
func (r *ChatTurnRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

//SourceRef is a citation attached to an assistant reply
type SourceRef struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet"`
	Favicon string `json:"favicon,omitempty"`
}

//RelatedQuestion is a suggested follow-up question
type RelatedQuestion struct {
	Text string `json:"text"`
}
