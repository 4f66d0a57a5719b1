package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := Cursor{TimestampSec: 1730635200, EventID: uuid.MustParse("c1d9b7dc-a1b2-4c3d-9e8f-7a6b5c4d3e2f")}
	enc := Encode(c)
	if enc == "" {
		t.Fatal("expected non-empty cursor")
	}

	got, ok := Decode(enc)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if got != c {
		t.Errorf("Decode(Encode(c)) = %+v, want %+v", got, c)
	}
}

func TestEncodeZeroValue(t *testing.T) {
	if got := Encode(Cursor{}); got != "" {
		t.Errorf("Encode(zero) = %q, want empty string", got)
	}
}

func TestDecodeInvalid(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	cases := []string{
		"",
		"not valid base64!!!",
		enc("onlyonepart"),
		enc("abc|not-a-uuid"),
	}
	for _, c := range cases {
		if _, ok := Decode(c); ok {
			t.Errorf("Decode(%q) unexpectedly succeeded", c)
		}
	}
}
