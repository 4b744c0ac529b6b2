package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/internal/services/refresher"
	"github.com/vadiminshakov/colonyfeed/internal/storage/snapshots"
)

const (
	headerTimestamp = "X-Snapshot-Timestamp"
	headerStale     = "X-Snapshot-Stale"
)

type snapshotReader[T any] interface {
	Load() (snapshots.Snapshot[T], error)
	Now() time.Time
}

type refreshStatus interface {
	Status() refresher.Status
}

// Feed publishes one snapshot store under /api/<Path>.
type Feed struct {
	Name string
	Path string

	serve  gin.HandlerFunc
	status func() FeedStatus
}

// FeedStatus summarizes the cached snapshot of a feed and its refresh loop.
type FeedStatus struct {
	Name       string            `json:"name"`
	Available  bool              `json:"available"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	CapturedAt *time.Time        `json:"captured_at,omitempty"`
	AgeSeconds float64           `json:"age_seconds"`
	Fresh      bool              `json:"fresh"`
	Records    int               `json:"records"`
	Refresh    *refresher.Status `json:"refresh,omitempty"`
}

// NewFeed builds a feed over store. The snapshot is reported stale once it is
// maxAge old. scheduler may be nil.
func NewFeed[T any](name, path string, store snapshotReader[T], maxAge time.Duration, scheduler refreshStatus, l *zap.Logger) Feed {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.With(zap.String("snapshot", name))

	return Feed{
		Name: name,
		Path: path,
		serve: func(c *gin.Context) {
			snap, err := store.Load()
			if err != nil {
				l.Error("failed to read snapshot", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + name})
				return
			}

			c.Header(headerTimestamp, strconv.FormatInt(snap.CapturedAt.UnixMilli(), 10))
			c.Header(headerStale, strconv.FormatBool(!fresh(snap.Age(store.Now()), maxAge)))
			c.JSON(http.StatusOK, snap.Payload)
		},
		status: func() FeedStatus {
			st := FeedStatus{Name: name}
			if scheduler != nil {
				rs := scheduler.Status()
				st.Refresh = &rs
			}

			snap, err := store.Load()
			if err != nil {
				return st
			}

			age := snap.Age(store.Now())
			captured := snap.CapturedAt.UTC()
			st.Available = true
			st.Timestamp = snap.CapturedAt.UnixMilli()
			st.CapturedAt = &captured
			st.AgeSeconds = age.Seconds()
			st.Fresh = fresh(age, maxAge)
			st.Records = len(snap.Payload)
			return st
		},
	}
}

func fresh(age, maxAge time.Duration) bool {
	return age < maxAge
}

func (s *Server) handleStatus(c *gin.Context) {
	statuses := make([]FeedStatus, 0, len(s.feeds))
	for _, feed := range s.feeds {
		statuses = append(statuses, feed.status())
	}

	c.JSON(http.StatusOK, gin.H{"feeds": statuses})
}
