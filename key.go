package requery

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Key is an ordered sequence of JSON-like segments identifying a query,
// e.g. K("bookmarks", "movies") or K("todo", 42, Filters{Done: true}).
// Two keys address the same entry iff their canonical forms are byte-equal.
type Key []any

// K builds a Key from its segments.
func K(segments ...any) Key { return Key(segments) }

func (k Key) String() string {
	return fmt.Sprintf("%v", []any(k))
}

// keyEnc is RFC 8949 Core Deterministic encoding: map keys are sorted, so
// property insertion order can never leak into entry identity.
var keyEnc = mustKeyEncMode()

func mustKeyEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Canonical returns the canonical comparable form of key. It is total over
// JSON-like inputs (scalars, slices, arrays, maps, structs, pointers) and
// fails with *InvalidKeyError on empty keys, non-serializable segments
// (func, chan, complex, unsafe.Pointer) and cyclic references.
func Canonical(key Key) (string, error) {
	if len(key) == 0 {
		return "", &InvalidKeyError{Key: key, Segment: -1, Err: errEmptyKey}
	}
	for i, seg := range key {
		if err := checkSegment(seg); err != nil {
			return "", &InvalidKeyError{Key: key, Segment: i, Err: err}
		}
	}
	b, err := keyEnc.Marshal([]any(key))
	if err != nil {
		return "", &InvalidKeyError{Key: key, Segment: -1, Err: err}
	}
	return string(b), nil
}

// checkSegment walks seg and rejects values CBOR cannot represent, plus
// cycles, which would otherwise recurse without bound during encoding.
func checkSegment(seg any) error {
	if seg == nil {
		return nil
	}
	return checkValue(reflect.ValueOf(seg), make(map[uintptr]struct{}))
}

func checkValue(v reflect.Value, path map[uintptr]struct{}) error {
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer,
		reflect.Complex64, reflect.Complex128, reflect.Uintptr:
		return fmt.Errorf("segment contains non-serializable kind %s", v.Kind())

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkValue(v.Elem(), path)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		p := v.Pointer()
		if _, ok := path[p]; ok {
			return errCyclicKey
		}
		path[p] = struct{}{}
		err := checkValue(v.Elem(), path)
		delete(path, p)
		return err

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		p := v.Pointer()
		if _, ok := path[p]; ok {
			return errCyclicKey
		}
		path[p] = struct{}{}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Key(), path); err != nil {
				return err
			}
			if err := checkValue(iter.Value(), path); err != nil {
				return err
			}
		}
		delete(path, p)
		return nil

	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return nil
		}
		p := v.Pointer()
		if _, ok := path[p]; ok {
			return errCyclicKey
		}
		path[p] = struct{}{}
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), path); err != nil {
				return err
			}
		}
		delete(path, p)
		return nil

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkValue(v.Index(i), path); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkValue(v.Field(i), path); err != nil {
				return err
			}
		}
		return nil

	default:
		// scalars: bool, ints, uints, floats, string
		return nil
	}
}
