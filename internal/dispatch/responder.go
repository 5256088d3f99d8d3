package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Responder answers free-form chat. Implementations may call a real backend;
// the dispatcher recovers panics and reports errors to the caller.
type Responder interface {
	// GenerateReply returns the assistant reply for message.
	GenerateReply(ctx context.Context, message string, msgCtx map[string]any) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, message string, msgCtx map[string]any) (string, error)

// GenerateReply calls f.
func (f ResponderFunc) GenerateReply(ctx context.Context, message string, msgCtx map[string]any) (string, error) {
	return f(ctx, message, msgCtx)
}

// CannedResponder cycles through a fixed set of replies. It stands in for a
// real chat backend.
type CannedResponder struct {
	next atomic.Uint64
}

// NewCannedResponder creates a CannedResponder.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{}
}

// GenerateReply returns the next canned reply.
func (r *CannedResponder) GenerateReply(_ context.Context, message string, _ map[string]any) (string, error) {
	replies := []string{
		"I can help with your commands and agents. Try a slash command like `/help` or `/status`.",
		"To get started, explore your project structure or run a command. What would you like to do?",
		"Ready when you are. Ask about files, run commands, or type `/help` for the list of built-ins.",
		fmt.Sprintf("Based on your message about %q, I can help you work with your project files and run commands.", message),
	}
	n := r.next.Add(1) - 1
	return replies[n%uint64(len(replies))], nil
}
