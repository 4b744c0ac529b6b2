package snapshots

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const timestampKey = "timestamp"

func encode[T any](key string, snap Snapshot[T]) ([]byte, error) {
	doc := map[string]any{
		timestampKey: snap.CapturedAt.UnixMilli(),
		key:          snap.Payload,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}

	return data, nil
}

// decode validates the raw document shape before decoding the payload into []T.
func decode[T any](key string, data []byte) (Snapshot[T], error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot[T]{}, ErrNotFound
	}
	if !gjson.ValidBytes(data) {
		return Snapshot[T]{}, errors.Wrap(ErrInvalidSnapshot, "content is not valid JSON")
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Snapshot[T]{}, errors.Wrap(ErrInvalidSnapshot, "document is not an object")
	}

	ts := doc.Get(timestampKey)
	if !ts.Exists() {
		return Snapshot[T]{}, errors.Wrap(ErrInvalidSnapshot, "timestamp is missing")
	}
	if ts.Type != gjson.Number {
		return Snapshot[T]{}, errors.Wrapf(ErrInvalidSnapshot, "timestamp is %s, not a number", ts.Type)
	}

	payload := doc.Get(gjson.Escape(key))
	if !payload.Exists() {
		return Snapshot[T]{}, errors.Wrapf(ErrInvalidSnapshot, "%s is missing", key)
	}
	if !payload.IsArray() {
		return Snapshot[T]{}, errors.Wrapf(ErrInvalidSnapshot, "%s is not a list", key)
	}

	var extra string
	doc.ForEach(func(k, _ gjson.Result) bool {
		if name := k.String(); name != timestampKey && name != key {
			extra = name
			return false
		}
		return true
	})
	if extra != "" {
		return Snapshot[T]{}, errors.Wrapf(ErrInvalidSnapshot, "unexpected field %q", extra)
	}

	items := make([]T, 0)
	if err := json.Unmarshal([]byte(payload.Raw), &items); err != nil {
		return Snapshot[T]{}, errors.Wrapf(ErrInvalidSnapshot, "decode %s: %v", key, err)
	}

	return Snapshot[T]{
		CapturedAt: time.UnixMilli(ts.Int()),
		Payload:    items,
	}, nil
}
