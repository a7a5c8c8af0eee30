package bridge

import "context"

// Context describes one inbound request after the channel has resolved
// conversation identity. SessionID doubles as the owner key for job
// quotas; ReceiverID is where replies go (the room for group chats, the
// sender otherwise).
type Context struct {
	SessionID  string
	ReceiverID string
	SenderID   string
	IsGroup    bool
	Content    string

	CorrelationID string
}

// Responder is the generic reply-generation backend the bot bridges to.
// Messages no plugin consumed end up here.
type Responder interface {
	Reply(ctx context.Context, in Context) (Reply, error)
}
