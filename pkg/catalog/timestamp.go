package catalog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// Epoch is the timestamp given to missing or malformed values. It is older
// than any real timestamp, so the other side of a comparison always wins.
var Epoch = time.Unix(0, 0).UTC()

// timestampLayouts are tried in order. Layouts without an offset are
// interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a point in time that is always held in UTC. It decodes
// leniently: anything that cannot be parsed becomes [Epoch].
type Timestamp struct {
	time.Time
}

// NewTimestamp returns t normalized to UTC, or [Epoch] if t is zero.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{Time: Epoch}
	}

	return Timestamp{Time: t.UTC().Round(0)}
}

// ParseTimestamp parses s with each supported layout. It never fails.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{Time: Epoch}
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NewTimestamp(t)
		}
	}

	slog.Debug("malformed timestamp, using epoch", slog.String("value", s))

	return Timestamp{Time: Epoch}
}

// After reports whether ts is strictly newer than other.
func (ts Timestamp) After(other Timestamp) bool {
	return ts.normalized().After(other.normalized())
}

// Equal reports whether both timestamps denote the same instant.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.normalized().Equal(other.normalized())
}

// IsEpoch reports whether ts is missing or was malformed.
func (ts Timestamp) IsEpoch() bool {
	return ts.normalized().Equal(Epoch)
}

func (ts Timestamp) String() string {
	return ts.normalized().Format(time.RFC3339)
}

func (ts Timestamp) normalized() time.Time {
	if ts.IsZero() {
		return Epoch
	}

	return ts.UTC()
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String()) //nolint:wrapcheck // Cannot fail.
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*ts = Timestamp{Time: Epoch}

		return nil
	}

	var s string

	err := json.Unmarshal(b, &s)
	if err != nil {
		// Numbers and other non-string values are malformed.
		*ts = Timestamp{Time: Epoch}

		return nil //nolint:nilerr // Malformed timestamps are normalized, not rejected.
	}

	*ts = ParseTimestamp(s)

	return nil
}
