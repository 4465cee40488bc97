package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

type collectingSink struct {
	replies []domain.ReplyPayload
	errs    []error
}

func (s *collectingSink) Deliver(ctx context.Context, reply domain.ReplyPayload) error {
	s.replies = append(s.replies, reply)
	return nil
}

func (s *collectingSink) OnError(err error) {
	s.errs = append(s.errs, err)
}

func TestUnavailableDispatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	sink := &collectingSink{}
	turn := &domain.Turn{Media: []domain.MediaRef{{Path: path}}}
	require.NoError(t, UnavailableDispatcher{}.Dispatch(context.Background(), turn, sink))

	require.Len(t, sink.replies, 1)
	assert.Equal(t, UnavailableNotice, sink.replies[0].Text)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "media is released")
}
