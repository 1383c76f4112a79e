package bundle

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestCanonicalize_KeyOrderIndependent(t *testing.T) {
	// Same logical content built in different insertion orders
	a := map[string]any{
		"ticket":   map[string]any{"body_md": "text", "ticket_id": "42"},
		"progress": map[string]any{"done": true},
	}
	b := map[string]any{
		"progress": map[string]any{"done": true},
		"ticket":   map[string]any{"ticket_id": "42", "body_md": "text"},
	}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize(a) error = %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize(b) error = %v", err)
	}

	if !bytes.Equal(ca, cb) {
		t.Errorf("canonical forms differ:\n%s\n%s", ca, cb)
	}
}

func TestCanonicalize_RoundTripStable(t *testing.T) {
	p := Payload{
		"events": []any{"started", "reviewed"},
		"ticket": map[string]any{"ticket_id": "T-1"},
	}

	first, err := Canonicalize(p)
	if err != nil {
		t.Fatalf("Canonicalize error = %v", err)
	}

	// Re-parse and re-canonicalize; a stored bundle must hash identically
	var parsed any
	if err := json.Unmarshal(first, &parsed); err != nil {
		t.Fatalf("unmarshal canonical form: %v", err)
	}
	second, err := Canonicalize(parsed)
	if err != nil {
		t.Fatalf("Canonicalize(parsed) error = %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("canonical form not stable across round trip:\n%s\n%s", first, second)
	}
}

func TestCanonicalize_PreservesLargeIntegers(t *testing.T) {
	p := map[string]any{"created_at": json.Number("1234567890123456789")}

	out, err := Canonicalize(p)
	if err != nil {
		t.Fatalf("Canonicalize error = %v", err)
	}
	if !bytes.Contains(out, []byte("1234567890123456789")) {
		t.Errorf("large integer mangled: %s", out)
	}
}

func TestCanonicalString(t *testing.T) {
	s, err := CanonicalString(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("CanonicalString error = %v", err)
	}
	if s != `{"a":1,"b":2}` {
		t.Errorf("CanonicalString = %q, want %q", s, `{"a":1,"b":2}`)
	}
}

func TestWithoutMeta(t *testing.T) {
	p := Payload{
		"ticket":    map[string]any{"ticket_id": "T-1"},
		MetaSection: map[string]any{"content_checksum": "abc"},
	}

	stripped := WithoutMeta(p)

	if _, ok := stripped[MetaSection]; ok {
		t.Error("meta section still present after WithoutMeta")
	}
	if _, ok := stripped["ticket"]; !ok {
		t.Error("ticket section missing after WithoutMeta")
	}
	// Original must not be mutated
	if _, ok := p[MetaSection]; !ok {
		t.Error("WithoutMeta mutated its input")
	}
}
