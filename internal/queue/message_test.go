package queue

import (
	"strings"
	"testing"
)

func TestMessageWireFormat(t *testing.T) {
	msg := Message{
		ExportID:   "export-123",
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	want := `{"exportId":"export-123","requestId":"request-456","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`
	if string(payload) != want {
		t.Fatalf("unexpected payload %s", payload)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got != msg {
		t.Fatalf("decode mismatch: got %+v want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{bad")); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
