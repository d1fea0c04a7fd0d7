package domain

import "time"

// Message represents one entry in a conversation timeline (user or agent).
// Agent messages are created empty and pending, grow as stream increments
// arrive, and are finalized exactly once.
type Message struct {
	ID        MessageID
	Author    Role
	Agent     AgentID // which agent produced it; empty for user messages
	Text      string
	CreatedAt time.Time

	// Pending is true while the message text is still being assembled.
	// At most one message in a conversation may be pending at a time.
	Pending bool

	// Suggestions holds the follow-up quick replies parsed from the
	// agent's output once the message is finalized.
	Suggestions []string
}

// ProjectContext is the shared state every agent prompt threads in.
type ProjectContext struct {
	// Topic is set at most once, from the first substantive user message.
	Topic string

	// DraftContent is the working draft. Overwritten by the apply-fixes flow.
	DraftContent string

	// ResearchNotes is append-only; researcher results accumulate here.
	ResearchNotes string
}
