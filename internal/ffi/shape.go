package ffi

import (
	"fmt"
	"strings"
)

// Kind is the native type of one parameter or result.
type Kind uint8

// String results are module-allocated and released by the binding. Bool is
// one byte wide; only its low byte is read back.
const (
	KindVoid Kind = iota
	KindString
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int64"
	case KindBool:
		return "bool"
	default:
		return "void"
	}
}

// Shape identifies one native function signature. The catalogue is closed:
// every export the bridge calls goes through one of these.
type Shape uint8

const (
	StringToString Shape = iota + 1
	String2ToString
	String3ToString
	String4ToString
	String5ToString
	StringIntToString
	StringIntIntToString
	StringIntIntIntToString
	Void
	StringToVoid
	String2ToVoid
	StringBoolToVoid
	BoolToVoid
	StringIntToVoid
	String3Int2ToVoid
	VoidToBool
	VoidToInt
)

// Signature is the parameter and result kinds of a Shape.
type Signature struct {
	Params []Kind
	Result Kind
}

const (
	tStr  = KindString
	tInt  = KindInt
	tBool = KindBool
)

var signatures = [...]Signature{
	StringToString:          {Params: []Kind{tStr}, Result: tStr},
	String2ToString:         {Params: []Kind{tStr, tStr}, Result: tStr},
	String3ToString:         {Params: []Kind{tStr, tStr, tStr}, Result: tStr},
	String4ToString:         {Params: []Kind{tStr, tStr, tStr, tStr}, Result: tStr},
	String5ToString:         {Params: []Kind{tStr, tStr, tStr, tStr, tStr}, Result: tStr},
	StringIntToString:       {Params: []Kind{tStr, tInt}, Result: tStr},
	StringIntIntToString:    {Params: []Kind{tStr, tInt, tInt}, Result: tStr},
	StringIntIntIntToString: {Params: []Kind{tStr, tInt, tInt, tInt}, Result: tStr},
	Void:                    {Result: KindVoid},
	StringToVoid:            {Params: []Kind{tStr}, Result: KindVoid},
	String2ToVoid:           {Params: []Kind{tStr, tStr}, Result: KindVoid},
	StringBoolToVoid:        {Params: []Kind{tStr, tBool}, Result: KindVoid},
	BoolToVoid:              {Params: []Kind{tBool}, Result: KindVoid},
	StringIntToVoid:         {Params: []Kind{tStr, tInt}, Result: KindVoid},
	String3Int2ToVoid:       {Params: []Kind{tStr, tStr, tStr, tInt, tInt}, Result: KindVoid},
	VoidToBool:              {Result: tBool},
	VoidToInt:               {Result: KindInt},
}

// Signature returns the kinds of s, and false for a shape outside the
// catalogue.
func (sh Shape) Signature() (Signature, bool) {
	if sh == 0 || int(sh) >= len(signatures) {
		return Signature{}, false
	}
	return signatures[sh], true
}

// String renders the shape as a C-like prototype, e.g. "(string, int64) -> string".
func (sh Shape) String() string {
	sig, ok := sh.Signature()
	if !ok {
		return fmt.Sprintf("Shape(%d)", uint8(sh))
	}
	params := make([]string, len(sig.Params))
	for n, k := range sig.Params {
		params[n] = k.String()
	}
	return "(" + strings.Join(params, ", ") + ") -> " + sig.Result.String()
}

// Shapes returns the whole catalogue in declaration order.
func Shapes() []Shape {
	out := make([]Shape, 0, len(signatures)-1)
	for sh := StringToString; int(sh) < len(signatures); sh++ {
		out = append(out, sh)
	}
	return out
}

// Check reports whether values fit the signature's parameters. Strings must
// be string, integers int64 and booleans bool.
func (sig Signature) Check(values []any) error {
	if len(values) != len(sig.Params) {
		return fmt.Errorf("want %d arguments, got %d", len(sig.Params), len(values))
	}
	for n, v := range values {
		var ok bool
		switch sig.Params[n] {
		case KindString:
			_, ok = v.(string)
		case KindInt:
			_, ok = v.(int64)
		case KindBool:
			_, ok = v.(bool)
		}
		if !ok {
			return fmt.Errorf("argument %d: want %s, got %T", n, sig.Params[n], v)
		}
	}
	return nil
}
