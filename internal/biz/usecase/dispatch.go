package usecase

import (
	"context"
	"errors"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

var (
	// ErrNoDispatcher is returned when a pipeline is built without a dispatcher
	ErrNoDispatcher = errors.New("no dispatcher configured")
	// ErrPipelineClosed is returned for events arriving after shutdown
	ErrPipelineClosed = errors.New("pipeline closed")
)

// UnavailableNotice is sent when no responder is wired at all
const UnavailableNotice = "The assistant is temporarily unavailable. Please try again later."

// UnavailableDispatcher answers every turn with a generic notice. It is
// wired explicitly when no responder is configured.
type UnavailableDispatcher struct{}

// Dispatch delivers the notice and releases the turn's media
func (UnavailableDispatcher) Dispatch(ctx context.Context, turn *domain.Turn, sink repo.ReplySink) error {
	defer turn.ReleaseMedia()
	return sink.Deliver(ctx, domain.ReplyPayload{Text: UnavailableNotice})
}

var _ repo.Dispatcher = UnavailableDispatcher{}
