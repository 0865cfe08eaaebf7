package codec

import (
	"strings"
	"testing"
)

type payload struct {
	Name  string   `json:"name" msgpack:"name" cbor:"name"`
	Tags  []string `json:"tags" msgpack:"tags" cbor:"tags"`
	Count int      `json:"count" msgpack:"count" cbor:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON[payload]{}
	in := payload{Name: "books", Tags: []string{"a", "b"}, Count: 3}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestJSONDecodeError(t *testing.T) {
	if _, err := (JSON[payload]{}).Decode([]byte("{nope")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	c := Msgpack[payload]{}
	in := payload{Name: "movies", Count: 7}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestCBORRoundTrip(t *testing.T) {
	c := MustCBOR[payload](true)
	in := payload{Name: "music", Tags: []string{"x"}, Count: 1}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestLimitRejectsOversizedDecode(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 8}

	small := []byte("tiny")
	if v, err := c.Decode(small); err != nil || v != "tiny" {
		t.Fatalf("Decode small = %q, %v", v, err)
	}

	big := []byte(strings.Repeat("x", 9))
	if _, err := c.Decode(big); err == nil {
		t.Fatalf("oversized payload must be rejected")
	}

	// Encode is never limited.
	if _, err := c.Encode(strings.Repeat("y", 100)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestLimitZeroDisablesCheck(t *testing.T) {
	c := Limit[string]{Inner: String{}}
	if v, err := c.Decode([]byte(strings.Repeat("x", 1<<16))); err != nil || len(v) != 1<<16 {
		t.Fatalf("Decode = len %d, %v", len(v), err)
	}
}

func TestRawCodecs(t *testing.T) {
	if b, err := (Bytes{}).Encode([]byte{1, 2}); err != nil || len(b) != 2 {
		t.Fatalf("Bytes.Encode = %v, %v", b, err)
	}
	s, err := (String{}).Decode([]byte("hi"))
	if err != nil || s != "hi" {
		t.Fatalf("String.Decode = %q, %v", s, err)
	}
}
