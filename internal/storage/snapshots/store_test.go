package snapshots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

func sampleFunds() []domain.DomainFunds {
	return []domain.DomainFunds{
		{
			DomainID:   1,
			DomainName: "General",
			Funds: []domain.AssetBalance{
				{Ticker: "ETH", Amount: "2.5"},
				{Ticker: "USDC", Amount: "100"},
			},
		},
		{
			DomainID:   3,
			DomainName: "Eco",
			Funds: []domain.AssetBalance{
				{Ticker: "ETH", Amount: "0"},
				{Ticker: "USDC", Amount: "50"},
			},
		},
	}
}

func newFileStore(t *testing.T, opts ...Option) (*Store[domain.DomainFunds], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "funds.json")
	store, err := NewStore[domain.DomainFunds](NewFileBackend(path), "funds", zap.NewNop(), opts...)
	require.NoError(t, err)
	return store, path
}

func TestStore_WriteThenRead(t *testing.T) {
	store, _ := newFileStore(t)

	start := time.Now().Truncate(time.Millisecond)
	written, err := store.Write(sampleFunds())
	end := time.Now()
	require.NoError(t, err)

	snap, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, sampleFunds(), snap.Payload)
	assert.True(t, snap.CapturedAt.Equal(written.CapturedAt))
	assert.False(t, snap.CapturedAt.Before(start), "captured_at before write started")
	assert.False(t, snap.CapturedAt.After(end), "captured_at after write finished")
}

func TestStore_DocumentLayout(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	store, path := newFileStore(t, WithClock(func() time.Time { return now }))

	_, err := store.Write(sampleFunds())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, int64(1_700_000_000_123), doc.Get("timestamp").Int())
	assert.True(t, doc.Get("funds").IsArray())
	assert.Len(t, doc.Map(), 2)
	assert.Equal(t, "2.5", doc.Get("funds.0.funds.0.amount").String())
	assert.Equal(t, "General", doc.Get("funds.0.domainName").String())
}

func TestStore_UsersPayloadKey(t *testing.T) {
	backend := NewMemoryBackend(nil)
	store, err := NewStore[domain.UserRoles](backend, "payload", zap.NewNop())
	require.NoError(t, err)

	users := []domain.UserRoles{{
		Address: "0xabc",
		Domains: []domain.UserDomain{{DomainID: 1, DomainName: "General", Roles: "Root", Reputation: "0.25%"}},
	}}
	_, err = store.Write(users)
	require.NoError(t, err)

	raw, err := backend.Load()
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(raw, "payload").IsArray())
	assert.False(t, gjson.GetBytes(raw, "funds").Exists())

	snap, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, users, snap.Payload)
}

func TestStore_Load_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty file", content: "", wantErr: ErrNotFound},
		{name: "whitespace only", content: "  \n", wantErr: ErrNotFound},
		{name: "not json", content: "{timestamp:", wantErr: ErrInvalidSnapshot},
		{name: "not an object", content: `[1,2,3]`, wantErr: ErrInvalidSnapshot},
		{name: "missing timestamp", content: `{"funds":[]}`, wantErr: ErrInvalidSnapshot},
		{name: "timestamp not a number", content: `{"timestamp":"yesterday","funds":[]}`, wantErr: ErrInvalidSnapshot},
		{name: "missing payload", content: `{"timestamp":1}`, wantErr: ErrInvalidSnapshot},
		{name: "payload not a list", content: `{"timestamp":1,"funds":{"domainId":1}}`, wantErr: ErrInvalidSnapshot},
		{name: "unexpected field", content: `{"timestamp":1,"funds":[],"extra":true}`, wantErr: ErrInvalidSnapshot},
		{name: "element of wrong shape", content: `{"timestamp":1,"funds":[{"domainId":"one"}]}`, wantErr: ErrInvalidSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newFileStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := store.Load()
			assert.ErrorIs(t, err, tt.wantErr)

			snap, ok := store.Read()
			assert.False(t, ok)
			assert.Nil(t, snap.Payload)
		})
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	store, _ := newFileStore(t)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := store.Read()
	assert.False(t, ok)
}

func TestStore_Load_EmptyList(t *testing.T) {
	store, _ := newFileStore(t)

	_, err := store.Write([]domain.DomainFunds{})
	require.NoError(t, err)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.NotNil(t, snap.Payload)
	assert.Empty(t, snap.Payload)
}

func TestStore_ReadIfFresh(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	now := base
	store, _ := newFileStore(t, WithClock(func() time.Time { return now }))

	_, err := store.Write(sampleFunds())
	require.NoError(t, err)

	tests := []struct {
		name    string
		elapsed time.Duration
		maxAge  time.Duration
		fresh   bool
	}{
		{name: "just written", elapsed: 0, maxAge: time.Minute, fresh: true},
		{name: "younger than max age", elapsed: 59 * time.Second, maxAge: time.Minute, fresh: true},
		{name: "exactly max age", elapsed: time.Minute, maxAge: time.Minute, fresh: false},
		{name: "older than max age", elapsed: 2 * time.Minute, maxAge: time.Minute, fresh: false},
		{name: "zero max age", elapsed: 0, maxAge: 0, fresh: false},
		{name: "negative max age", elapsed: 0, maxAge: -time.Second, fresh: false},
		{name: "clock stepped back, zero max age", elapsed: -time.Second, maxAge: 0, fresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base.Add(tt.elapsed)
			snap, ok := store.ReadIfFresh(tt.maxAge)
			assert.Equal(t, tt.fresh, ok)
			if tt.fresh {
				assert.Equal(t, sampleFunds(), snap.Payload)
				assert.True(t, snap.CapturedAt.Equal(base))
			}
		})
	}
}

func TestStore_ReadIfFresh_AfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funds.json")
	written := time.UnixMilli(1_700_000_000_000)

	first, err := NewStore[domain.DomainFunds](NewFileBackend(path), "funds", zap.NewNop(),
		WithClock(func() time.Time { return written }))
	require.NoError(t, err)
	_, err = first.Write(sampleFunds())
	require.NoError(t, err)

	restarted := written.Add(3 * time.Minute)
	second, err := NewStore[domain.DomainFunds](NewFileBackend(path), "funds", zap.NewNop(),
		WithClock(func() time.Time { return restarted }))
	require.NoError(t, err)

	snap, ok := second.ReadIfFresh(5 * time.Minute)
	require.True(t, ok)
	assert.Equal(t, sampleFunds(), snap.Payload)
	assert.True(t, snap.CapturedAt.Equal(written))

	_, ok = second.ReadIfFresh(2 * time.Minute)
	assert.False(t, ok)
}

func TestStore_Write_NilPayloadKeepsPrevious(t *testing.T) {
	store, path := newFileStore(t)

	first, err := store.Write(sampleFunds())
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = store.Write(nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap, ok := store.Read()
	require.True(t, ok)
	assert.True(t, snap.CapturedAt.Equal(first.CapturedAt))
}

func TestStore_Write_BackendFailureKeepsPrevious(t *testing.T) {
	backend := NewMemoryBackend(nil)
	store, err := NewStore[domain.DomainFunds](backend, "funds", zap.NewNop())
	require.NoError(t, err)

	_, err = store.Write(sampleFunds())
	require.NoError(t, err)

	backend.FailSaves(errors.New("disk full"))
	_, err = store.Write([]domain.DomainFunds{})
	require.Error(t, err)

	snap, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, sampleFunds(), snap.Payload)
	assert.Equal(t, 1, backend.Saves())
}

func TestStore_Load_BackendError(t *testing.T) {
	backend := NewMemoryBackend(nil)
	backend.FailLoads(errors.New("permission denied"))
	store, err := NewStore[domain.DomainFunds](backend, "funds", zap.NewNop())
	require.NoError(t, err)

	_, err = store.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, ok := store.Read()
	assert.False(t, ok)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore[domain.DomainFunds](nil, "funds", zap.NewNop())
	assert.Error(t, err)

	_, err = NewStore[domain.DomainFunds](NewMemoryBackend(nil), "", zap.NewNop())
	assert.Error(t, err)

	_, err = NewStore[domain.DomainFunds](NewMemoryBackend(nil), "timestamp", zap.NewNop())
	assert.Error(t, err)
}

func TestFileBackend_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(filepath.Join(dir, "users.json"))

	require.NoError(t, backend.Save([]byte(`{"timestamp":1,"payload":[]}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users.json", entries[0].Name())

	data, err := backend.Load()
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
