package h264

import "testing"

func TestParseSEIPayloadsSingle(t *testing.T) {
	t.Parallel()
	// payload_type=5 (user_data_unregistered), payload_size=3, body "abc"
	body := []byte{5, 3, 'a', 'b', 'c'}
	payloads := ParseSEIPayloads(body)
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	if payloads[0].Type != 5 || string(payloads[0].Payload) != "abc" {
		t.Fatalf("unexpected payload: %+v", payloads[0])
	}
}

func TestParseSEIPayloadsExtendedType(t *testing.T) {
	t.Parallel()
	// payload_type = 255+10 = 265, payload_size=2, body "hi"
	body := []byte{0xFF, 10, 2, 'h', 'i'}
	payloads := ParseSEIPayloads(body)
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	if payloads[0].Type != 265 {
		t.Fatalf("Type = %d, want 265", payloads[0].Type)
	}
}

func TestParseSEIPayloadsMultiple(t *testing.T) {
	t.Parallel()
	body := []byte{5, 2, 'h', 'i', 6, 1, 'x'}
	payloads := ParseSEIPayloads(body)
	if len(payloads) != 2 {
		t.Fatalf("got %d payloads, want 2", len(payloads))
	}
	if payloads[1].Type != 6 || string(payloads[1].Payload) != "x" {
		t.Fatalf("unexpected second payload: %+v", payloads[1])
	}
}

func TestDecodeTimestampSEI(t *testing.T) {
	t.Parallel()
	p := SEIPayload{Type: 242, Payload: []byte(`{"unix_nano":12345}`)}
	ts, ok := DecodeTimestampSEI(p)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if ts.UnixNano != 12345 {
		t.Fatalf("UnixNano = %d, want 12345", ts.UnixNano)
	}
}

func TestDecodeTimestampSEIWrongType(t *testing.T) {
	t.Parallel()
	p := SEIPayload{Type: 5, Payload: []byte("abc")}
	if _, ok := DecodeTimestampSEI(p); ok {
		t.Fatalf("expected ok=false for non-242 payload type")
	}
}
