// Package args reads typed values out of a method call's argument bag.
//
// Extraction never fails. A missing bag, a missing key, or a value of the
// wrong kind all produce the caller's default, so a malformed optional field
// degrades instead of aborting the call.
package args

import "encoding/json"

// Bag is the keyed form of a method call's arguments.
type Bag = map[string]any

func lookup(v any, key string) (any, bool) {
	bag, ok := v.(Bag)
	if !ok || bag == nil {
		return nil, false
	}
	x, ok := bag[key]
	return x, ok
}

// String returns the text stored at key, or def.
func String(v any, key, def string) string {
	if x, ok := lookup(v, key); ok {
		if s, ok := x.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the integer stored at key widened to 64 bits, or def.
// 32-bit and 64-bit values are both accepted; integral JSON numbers from the
// WebSocket transport are too.
func Int(v any, key string, def int64) int64 {
	x, ok := lookup(v, key)
	if !ok {
		return def
	}
	switch n := x.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return def
}

// Bool returns the boolean stored at key, or def.
func Bool(v any, key string, def bool) bool {
	if x, ok := lookup(v, key); ok {
		if b, ok := x.(bool); ok {
			return b
		}
	}
	return def
}

// Text reports whether the whole argument is raw text, as some calls carry a
// serialized request instead of a bag.
func Text(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
