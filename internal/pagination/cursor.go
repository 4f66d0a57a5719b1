// Package pagination implements the cursor scheme IFTTT polling requires:
// a server resumes a trigger poll strictly after the event named by the
// client-supplied cursor (spec.md §4.5, §6).
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Cursor names a position in a per-slug trigger event stream: the
// timestamp and id of the last event a client has already seen. Encoding
// both (not just the id) lets a resumed scan seek to the right point in
// the ring buffer without a secondary id→timestamp lookup.
type Cursor struct {
	TimestampSec int64
	EventID      uuid.UUID
}

// Encode returns a base64url cursor string, or "" for the zero cursor.
func Encode(c Cursor) string {
	if c.TimestampSec == 0 && c.EventID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.TimestampSec, c.EventID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor string produced by Encode. ok is false for an
// empty, malformed, or unparseable cursor, in which case the caller
// should treat the request as starting from the beginning of the stream.
func Decode(s string) (c Cursor, ok bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	parts := strings.SplitN(string(b), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{TimestampSec: ts, EventID: id}, true
}
