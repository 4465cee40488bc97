package repo

import (
	"context"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// ReplySink receives the dispatcher's output for one turn
type ReplySink interface {
	// Deliver formats and sends one reply payload. It may be called any
	// number of times per turn, including zero.
	Deliver(ctx context.Context, reply domain.ReplyPayload) error

	// OnError reports a dispatch failure. Nothing is shown to the user.
	OnError(err error)
}

// Dispatcher hands a turn to the responder.
// The dispatcher owns the turn's media and must release it once read.
type Dispatcher interface {
	Dispatch(ctx context.Context, turn *domain.Turn, sink ReplySink) error
}
