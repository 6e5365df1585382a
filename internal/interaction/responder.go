package interaction

import (
	"context"
	"log/slog"
)

// Responder maps validated requests to replies.
type Responder struct {
	replies *ReplyTable
	logger  *slog.Logger
}

// NewResponder creates a Responder backed by replies.
func NewResponder(replies *ReplyTable, logger *slog.Logger) *Responder {
	return &Responder{
		replies: replies,
		logger:  logger,
	}
}

// Respond returns the reply for req. Ping gets Pong; every other variant gets a channel
// message with the looked-up text.
func (r *Responder) Respond(ctx context.Context, req Request) Response {
	if req.IsPing() {
		r.logger.InfoContext(ctx, "interaction ping")
		return Pong()
	}

	var name string
	if req.Data != nil {
		name = req.Data.Name
	}
	text, known := r.replies.Lookup(name)

	args := append(CallerOf(req).LogArgs(),
		"interaction_type", req.Type.String(),
		"command", name,
		"known_command", known,
	)
	r.logger.InfoContext(ctx, "interaction invoked", args...)

	return ChannelMessage(text)
}
