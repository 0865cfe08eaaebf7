package requery

import (
	"errors"
	"testing"
)

// TestCanonicalDeterministic verifies that structurally equal keys built in
// different property orders canonicalize identically.
func TestCanonicalDeterministic(t *testing.T) {
	mk := func(order []string) Key {
		m := make(map[string]any, len(order))
		for _, k := range order {
			m[k] = "v-" + k // value derived from the key, not insertion order
		}
		m["done"] = true
		m["page"] = 3
		return K("todos", m)
	}
	a, err := Canonical(mk([]string{"x", "y", "z"}))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, err := Canonical(mk([]string{"z", "y", "x"}))
		if err != nil {
			t.Fatalf("Canonical: %v", err)
		}
		if a != b {
			t.Fatalf("canonical forms differ for structurally equal keys")
		}
	}
}

func TestCanonicalDistinguishesKeys(t *testing.T) {
	cases := [][2]Key{
		{K("bookmarks", "movies"), K("bookmarks", "books")},
		{K("a", 1), K("a", "1")},
		{K("a", 1), K("a", 1, nil)},
		{K("a"), K("A")},
	}
	for _, c := range cases {
		ca, err := Canonical(c[0])
		if err != nil {
			t.Fatalf("Canonical(%v): %v", c[0], err)
		}
		cb, err := Canonical(c[1])
		if err != nil {
			t.Fatalf("Canonical(%v): %v", c[1], err)
		}
		if ca == cb {
			t.Fatalf("keys %v and %v must not collide", c[0], c[1])
		}
	}
}

func TestCanonicalStructSegments(t *testing.T) {
	type filters struct {
		Done bool
		Page int
	}
	a, err := Canonical(K("todos", filters{Done: true, Page: 2}))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	b, err := Canonical(K("todos", filters{Done: true, Page: 2}))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if a != b {
		t.Fatalf("identical struct segments must canonicalize identically")
	}
}

func TestCanonicalRejectsEmptyKey(t *testing.T) {
	var ike *InvalidKeyError
	if _, err := Canonical(nil); !errors.As(err, &ike) {
		t.Fatalf("expected *InvalidKeyError, got %v", err)
	}
}

func TestCanonicalRejectsNonSerializable(t *testing.T) {
	bad := []Key{
		K("a", func() {}),
		K("a", make(chan int)),
		K("a", complex(1, 2)),
		K("a", map[string]any{"fn": func() {}}),
	}
	for _, k := range bad {
		var ike *InvalidKeyError
		if _, err := Canonical(k); !errors.As(err, &ike) {
			t.Fatalf("key %v: expected *InvalidKeyError, got %v", k, err)
		}
	}
}

func TestCanonicalRejectsCycles(t *testing.T) {
	type node struct {
		Name string
		Next *node
	}
	n := &node{Name: "n"}
	n.Next = n

	var ike *InvalidKeyError
	if _, err := Canonical(K("graph", n)); !errors.As(err, &ike) {
		t.Fatalf("expected *InvalidKeyError for cyclic segment, got %v", err)
	}
	if !errors.Is(ike, errCyclicKey) {
		t.Fatalf("expected cyclic reason, got %v", ike.Err)
	}

	m := map[string]any{}
	m["self"] = m
	if _, err := Canonical(K("graph", m)); !errors.As(err, &ike) {
		t.Fatalf("expected *InvalidKeyError for cyclic map, got %v", err)
	}
}

// Shared aliases of the same backing data are not cycles; the walk must not
// confuse revisits across siblings with revisits along one path.
func TestCanonicalAllowsSharedReferences(t *testing.T) {
	shared := []string{"a", "b"}
	if _, err := Canonical(K("pair", [][]string{shared, shared})); err != nil {
		t.Fatalf("shared (non-cyclic) references must be valid: %v", err)
	}
}
