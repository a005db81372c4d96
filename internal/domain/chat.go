package domain

// Message is one caller-supplied conversation turn. The core forwards role
// and content opaquely; it does not validate them beyond JSON shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Persona is the fixed system instruction prepended to the retrieved context.
const Persona = "You are an expert career advisor based on the user's profile."

// Fixed user-safe fallback strings. Raw provider errors never reach a caller.
const (
	FallbackNoAnswer    = "No answer returned."
	FallbackUnavailable = "AI service unavailable. Please try again later."
)

// LastUserQuery returns the content of the last message, which drives
// retrieval. Empty history yields an empty query.
func LastUserQuery(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
