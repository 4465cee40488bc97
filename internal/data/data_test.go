package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	dir := t.TempDir()
	repos, err := NewRepositories(filepath.Join(dir, "state", "relay.db"), filepath.Join(dir, "media"))
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()
	sessions := newTestRepositories(t).Session

	missing, err := sessions.Get(ctx, "feishu:default:dm:ou_x")
	require.NoError(t, err)
	assert.Nil(t, missing)

	base := time.UnixMilli(1_700_000_000_000)
	for i, s := range []*domain.Session{
		{Key: "a1", AccountID: "a", ChatID: "oc_1", ChatType: domain.ChatTypeGroup, CreatedAt: base, UpdatedAt: base.Add(1 * time.Minute)},
		{Key: "a2", AccountID: "a", ChatID: "ou_2", ChatType: domain.ChatTypeP2P, SenderID: "ou_2", CreatedAt: base, UpdatedAt: base.Add(3 * time.Minute)},
		{Key: "b1", AccountID: "b", ChatID: "oc_3", ChatType: domain.ChatTypeGroup, CreatedAt: base, UpdatedAt: base.Add(2 * time.Minute)},
	} {
		s.TurnCount = int64(i + 1)
		s.LastMessageID = "om_" + s.Key
		require.NoError(t, sessions.Save(ctx, s))
	}

	got, err := sessions.Get(ctx, "a2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ChatTypeP2P, got.ChatType)
	assert.Equal(t, "ou_2", got.SenderID)
	assert.Equal(t, "om_a2", got.LastMessageID)
	assert.Equal(t, int64(2), got.TurnCount)
	assert.True(t, got.UpdatedAt.Equal(base.Add(3*time.Minute)))

	all, err := sessions.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a2", "b1", "a1"}, []string{all[0].Key, all[1].Key, all[2].Key})

	onlyA, err := sessions.List(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "a2", onlyA[0].Key)

	// Save replaces the existing row
	got.TurnCount = 9
	require.NoError(t, sessions.Save(ctx, got))
	again, err := sessions.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(9), again.TurnCount)

	removed, err := sessions.CleanupStale(ctx, base.Add(150*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := sessions.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "a2", left[0].Key)
}

func TestAccountRepoSnapshots(t *testing.T) {
	ctx := context.Background()
	accounts := newTestRepositories(t).Account

	started := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, accounts.SaveSnapshot(ctx, domain.AccountSnapshot{
		AccountID:    "work",
		Configured:   true,
		Running:      true,
		Connected:    true,
		LastStartAt:  started,
		MessageCount: 12,
	}))
	require.NoError(t, accounts.SaveSnapshot(ctx, domain.AccountSnapshot{
		AccountID:  "alpha",
		Configured: false,
		ErrorCount: 1,
		LastError:  "missing credentials",
	}))
	// Newer snapshot of the same account replaces the old one
	require.NoError(t, accounts.SaveSnapshot(ctx, domain.AccountSnapshot{
		AccountID:    "work",
		Configured:   true,
		LastStartAt:  started,
		LastStopAt:   started.Add(time.Hour),
		MessageCount: 15,
	}))

	snaps, err := accounts.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "alpha", snaps[0].AccountID)
	assert.Equal(t, "missing credentials", snaps[0].LastError)
	assert.True(t, snaps[0].LastStartAt.IsZero())

	work := snaps[1]
	assert.Equal(t, "work", work.AccountID)
	assert.False(t, work.Running)
	assert.Equal(t, int64(15), work.MessageCount)
	assert.True(t, work.LastStopAt.Equal(started.Add(time.Hour)))
	assert.True(t, work.LastInboundAt.IsZero())
}

func TestSniffImage(t *testing.T) {
	ext, mime := SniffImage([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	assert.Equal(t, "jpg", ext)
	assert.Equal(t, "image/jpeg", mime)

	ext, _ = SniffImage([]byte("GIF89a"))
	assert.Equal(t, "gif", ext)

	ext, mime = SniffImage([]byte{0x01})
	assert.Equal(t, "png", ext)
	assert.Equal(t, "image/png", mime)
}

func TestMediaStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewMediaStore(root)

	ref, err := store.Save(ctx, "../escape", []byte("GIF89a-data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "escape"), filepath.Dir(ref.Path))
	assert.Equal(t, "image/gif", ref.MIMEType)
	assert.Equal(t, int64(len("GIF89a-data")), ref.Size)

	old, err := store.Save(ctx, "default", []byte{0x89, 0x50, 0x4E, 0x47})
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(old.Path))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	removed, err := store.Sweep(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, ref.Path)
	assert.NoFileExists(t, old.Path)

	// Releasing an already swept artifact is fine
	require.NoError(t, old.Release())
}

func TestMediaStoreSweepMissingRoot(t *testing.T) {
	store := NewMediaStore(filepath.Join(t.TempDir(), "never-created"))
	removed, err := store.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
