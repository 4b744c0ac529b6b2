package snapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

func TestWALBackend_EmptyLog(t *testing.T) {
	backend, err := NewWALBackend(t.TempDir(), "funds")
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWALBackend_ServesNewestAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.UnixMilli(1_700_000_000_000)
	clock := WithClock(func() time.Time { return now })

	backend, err := NewWALBackend(dir, "funds")
	require.NoError(t, err)

	store, err := NewStore[domain.DomainFunds](backend, "funds", zap.NewNop(), clock)
	require.NoError(t, err)

	_, err = store.Write(sampleFunds()[:1])
	require.NoError(t, err)
	now = now.Add(5 * time.Minute)
	_, err = store.Write(sampleFunds())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), backend.CurrentIndex())
	require.NoError(t, backend.Close())

	reopened, err := NewWALBackend(dir, "funds")
	require.NoError(t, err)
	defer reopened.Close()

	store, err = NewStore[domain.DomainFunds](reopened, "funds", zap.NewNop(), clock)
	require.NoError(t, err)

	snap, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, sampleFunds(), snap.Payload)
	assert.True(t, snap.CapturedAt.Equal(now))
}

func TestWALBackend_ForeignRecordIsNotFound(t *testing.T) {
	backend, err := NewWALBackend(t.TempDir(), "funds")
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.wal.Write(1, "balances", []byte(`{"timestamp":1}`)))

	_, err = backend.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Save([]byte(`{"timestamp":2,"funds":[]}`)))
	data, err := backend.Load()
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":2,"funds":[]}`, string(data))
}

func TestNewWALBackend_RequiresName(t *testing.T) {
	_, err := NewWALBackend(t.TempDir(), "")
	assert.Error(t, err)
}
