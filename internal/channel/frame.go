package channel

import (
	"bytes"
	"encoding/json"

	"github.com/agiangrant/gobridge"
)

// Request is an inbound method call frame.
type Request struct {
	ID      string          `json:"id,omitempty"`   // correlation ID, generated when empty
	Channel string          `json:"channel"`        // method channel name
	Method  string          `json:"method"`         // method name on the channel
	Args    json.RawMessage `json:"args,omitempty"` // argument bag, raw text, or absent
}

// Reply answers one Request. The response fields are inlined next to ID.
type Reply struct {
	ID string `json:"id"`
	gobridge.Response
}

// DecodeArgs turns a frame's args into the shapes the router reads: objects
// become map[string]any, integral numbers int64.
func DecodeArgs(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}
