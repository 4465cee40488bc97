package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// MediaRepo materializes inbound media as local artifacts
type MediaRepo interface {
	// Save writes data under the account's scope and returns its handle
	Save(ctx context.Context, accountID string, data []byte) (domain.MediaRef, error)

	// Sweep removes artifacts older than the cutoff and returns the count
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
