package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

// MaxKeyLen is the largest canonical key the snapshot framing can carry;
// the key length field is a u16.
const MaxKeyLen = 0xFFFF

var (
	ErrCorrupt    = errors.New("requery: corrupt snapshot")
	ErrKeyTooLong = errors.New("requery: snapshot key too long")
	magic4        = [...]byte{'R', 'Q', 'S', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Item is one dehydrated cache entry: the canonical key, the success
// timestamp (unix nanos, used by Hydrate to keep newer state), and the
// codec-encoded value.
type Item struct {
	Key       string
	UpdatedAt int64
	Payload   []byte
}

// Snapshot layout:
//
//	magic(4) | ver(1) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | updatedAt(u64 be) | vlen(u32 be) | payload(vlen) * n
//
// Keys longer than MaxKeyLen do not fit the u16 length field and yield
// ErrKeyTooLong; callers decide whether to skip the entry or abort.
func EncodeSnapshot(items []Item) ([]byte, error) {
	total := 4 + 1 + 4
	for _, it := range items {
		if len(it.Key) > MaxKeyLen {
			return nil, ErrKeyTooLong
		}
		total += 2 + len(it.Key) + 8 + 4 + len(it.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		if len(it.Key) == 0 {
			// Canonical rejects empty keys long before an entry exists.
			panic("requery: empty key in snapshot")
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(it.Key)))
		buf.Write(u2[:])
		buf.WriteString(it.Key)

		binary.BigEndian.PutUint64(u8[:], uint64(it.UpdatedAt))
		buf.Write(u8[:])

		binary.BigEndian.PutUint32(u4[:], uint32(len(it.Payload)))
		buf.Write(u4[:])
		buf.Write(it.Payload)
	}

	return buf.Bytes(), nil
}

func DecodeSnapshot(b []byte) ([]Item, error) {
	const hdr = 4 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return nil, ErrCorrupt
	}

	off := 5
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// The count is untrusted input; each item occupies at least 15 bytes
	// (keyLen + one key byte + updatedAt + vlen), so anything larger cannot
	// be backed by the blob and must not size the allocation.
	if n > (len(b)-off)/15 {
		return nil, ErrCorrupt
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		keyBytes := b[off : off+klen]
		off += klen

		if off+8 > len(b) {
			return nil, ErrCorrupt
		}
		updatedAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
		off += 8

		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}
		payload := b[off : off+vlen]
		off += vlen

		items = append(items, Item{
			Key:       string(keyBytes),
			UpdatedAt: updatedAt,
			Payload:   payload,
		})
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}

	return items, nil
}
