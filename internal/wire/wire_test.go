package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, items []Item) []byte {
	t.Helper()
	b, err := EncodeSnapshot(items)
	if err != nil {
		t.Fatalf("EncodeSnapshot error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) []Item {
	t.Helper()
	items, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("DecodeSnapshot error: %v", err)
	}
	return items
}

func TestSnapshotRoundTrip(t *testing.T) {
	in := []Item{
		{Key: "k1", UpdatedAt: 0, Payload: nil},
		{Key: "another-key", UpdatedAt: 1234567890, Payload: []byte("hello")},
		{Key: "\x82\x61a\x01", UpdatedAt: -1, Payload: []byte{0, 1, 2, 3}}, // binary canonical key
	}
	out := mustDecode(t, mustEncode(t, in))
	if len(out) != len(in) {
		t.Fatalf("item count: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Key != in[i].Key {
			t.Fatalf("item %d key mismatch: got %q want %q", i, out[i].Key, in[i].Key)
		}
		if out[i].UpdatedAt != in[i].UpdatedAt {
			t.Fatalf("item %d updatedAt mismatch: got %d want %d", i, out[i].UpdatedAt, in[i].UpdatedAt)
		}
		if !bytes.Equal(out[i].Payload, in[i].Payload) {
			t.Fatalf("item %d payload mismatch: got %x want %x", i, out[i].Payload, in[i].Payload)
		}
	}
}

func TestSnapshotEmpty(t *testing.T) {
	out := mustDecode(t, mustEncode(t, nil))
	if len(out) != 0 {
		t.Fatalf("expected no items, got %d", len(out))
	}
}

func TestEncodeSnapshotMaxKeyBoundary(t *testing.T) {
	atLimit := []Item{{Key: strings.Repeat("k", MaxKeyLen), UpdatedAt: 1}}
	out := mustDecode(t, mustEncode(t, atLimit))
	if len(out) != 1 || len(out[0].Key) != MaxKeyLen {
		t.Fatalf("key at MaxKeyLen must round-trip, got %d items", len(out))
	}

	over := []Item{{Key: strings.Repeat("k", MaxKeyLen+1), UpdatedAt: 1}}
	if _, err := EncodeSnapshot(over); !errors.Is(err, ErrKeyTooLong) {
		t.Fatalf("oversized key: got %v, want ErrKeyTooLong", err)
	}
}

func TestSnapshotRejectsCorruption(t *testing.T) {
	enc := mustEncode(t, []Item{{Key: "k", UpdatedAt: 1, Payload: []byte("abc")}})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeSnapshot(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeSnapshot(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	truncated := enc[:len(enc)-2]
	if _, err := DecodeSnapshot(truncated); err == nil {
		t.Fatalf("expected error on truncated input")
	}

	trailing := append(append([]byte(nil), enc...), 0xDE, 0xAD)
	if _, err := DecodeSnapshot(trailing); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}

	// Header claims ~4.29e9 items in a 9-byte blob; the count must be
	// rejected against the blob size before any allocation sized on it.
	hugeCount := []byte{'R', 'Q', 'S', 'N', version, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := DecodeSnapshot(hugeCount); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on impossible item count, got %v", err)
	}

	inflated := append([]byte(nil), enc...)
	inflated[5], inflated[6], inflated[7], inflated[8] = 0x00, 0x00, 0x01, 0x00 // claims 256 items
	if _, err := DecodeSnapshot(inflated); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on inflated item count, got %v", err)
	}

	if _, err := DecodeSnapshot([]byte("nope")); err == nil {
		t.Fatalf("expected error on short input")
	}
}

func TestEncodeSnapshotPanicsOnEmptyKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty key")
		}
	}()
	_, _ = EncodeSnapshot([]Item{{Key: "", UpdatedAt: 1}})
}
