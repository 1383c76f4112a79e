package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Canonicalize serializes v to a canonical JSON form: object keys sorted,
// no insignificant whitespace, stable across processes. The value is
// round-tripped through generic JSON types so struct field order and map
// insertion order never leak into the output.
//
// This is the correctness-critical contract of the checksum engine: two
// logically identical payloads must canonicalize to identical bytes.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	// Decode with UseNumber so numeric values survive the round trip
	// verbatim (1e2 and 100 stay distinct, no float drift).
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}

	// encoding/json sorts map keys on marshal, which gives us the
	// deterministic key ordering.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: remarshal: %w", err)
	}
	return out, nil
}

// CanonicalString is Canonicalize returning a string.
func CanonicalString(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WithoutMeta returns a shallow copy of the payload with the meta section
// removed. Used before content hashing and section metrics.
func WithoutMeta(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if k == MetaSection {
			continue
		}
		out[k] = v
	}
	return out
}
