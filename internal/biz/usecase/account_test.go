package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountStateLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	s := NewAccountState("acct", true)
	s.now = func() time.Time { return now }

	s.MarkStarted()
	s.SetConnected(true)
	s.RecordInbound()
	s.RecordInbound()
	s.RecordOutbound()
	s.RecordError(errors.New("send failed"))
	s.RecordError(nil)

	snap := s.Snapshot()
	assert.Equal(t, "acct", snap.AccountID)
	assert.True(t, snap.Configured)
	assert.True(t, snap.Running)
	assert.True(t, snap.Connected)
	assert.Equal(t, int64(2), snap.MessageCount)
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.Equal(t, "send failed", snap.LastError)
	assert.Equal(t, now, snap.LastStartAt)
	assert.Equal(t, now, snap.LastInboundAt)

	now = now.Add(time.Hour)
	s.MarkStopped()
	snap = s.Snapshot()
	assert.False(t, snap.Running)
	assert.False(t, snap.Connected)
	assert.Equal(t, now, snap.LastStopAt)
}

func TestAccountRegistry(t *testing.T) {
	r := NewAccountRegistry()
	r.Register(NewAccountState("zeta", true))
	r.Register(NewAccountState("alpha", false))

	snaps := r.Snapshots()
	assert.Len(t, snaps, 2)
	assert.Equal(t, "alpha", snaps[0].AccountID)
	assert.Equal(t, "zeta", snaps[1].AccountID)

	_, ok := r.Get("alpha")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}
