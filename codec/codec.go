// Package codec defines the serialization boundary used by requery's
// snapshot dehydration/hydration: a Codec turns cached values into bytes and
// back. Pick the codec matching how snapshots travel (JSON for debuggable
// payloads, Msgpack/CBOR for compact ones, Protobuf for schema'd values).
package codec

// Codec encodes/decodes values V to []byte for snapshot payloads.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
