package model

// Conversation roles as supplied by clients. Provider clients map these
// into whatever vocabulary their backend expects.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation turn supplied by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is an ordered conversation, oldest first.
type History []Turn

// Tail returns the most recent n turns, preserving order.
// The caller may supply an unbounded history; only a bounded
// suffix is ever forwarded to a provider.
func (h History) Tail(n int) History {
	if n <= 0 || len(h) == 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
