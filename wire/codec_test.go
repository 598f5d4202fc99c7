package wire

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
)

func TestEncodeRequestRequiresModel(t *testing.T) {
	_, err := EncodeRequest(Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestEncodeRequestRequiresMessages(t *testing.T) {
	_, err := EncodeRequest(Request{Model: "claude-opus-4-5-20251101"})
	if err == nil {
		t.Fatal("expected error for missing messages")
	}
}

func TestEncodeRequestRoundTrip(t *testing.T) {
	req := Request{
		Model:       "claude-opus-4-5-20251101",
		MaxTokens:   4096,
		Temperature: 0.5,
		System:      "be terse",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Stream:      true,
	}
	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded Request
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Model != req.Model || decoded.MaxTokens != req.MaxTokens || !decoded.Stream {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeSSELineSkipsNonData(t *testing.T) {
	ev, ok, err := DecodeSSELine([]byte("event: message_start"))
	if ok || err != nil {
		t.Fatalf("expected skip, got ev=%+v ok=%v err=%v", ev, ok, err)
	}
}

func TestDecodeSSELineSkipsBlank(t *testing.T) {
	_, ok, err := DecodeSSELine([]byte("  "))
	if ok || err != nil {
		t.Fatalf("expected skip for blank line, ok=%v err=%v", ok, err)
	}
}

func TestDecodeSSELineDoneSentinel(t *testing.T) {
	_, ok, err := DecodeSSELine([]byte("data: [DONE]"))
	if ok {
		t.Fatal("expected ok=false for DONE sentinel")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestDecodeSSELineMalformedJSONSkipped(t *testing.T) {
	ev, ok, err := DecodeSSELine([]byte("data: {not json"))
	if ok || err != nil {
		t.Fatalf("expected silent skip, got ev=%+v ok=%v err=%v", ev, ok, err)
	}
}

func TestDecodeSSELineContentBlockDelta(t *testing.T) {
	line := []byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`)
	ev, ok, err := DecodeSSELine(line)
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if ev.Type != EventContentBlockDelta || ev.TextDelta != "hi" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestDecodeSSELineMessageStartCapturesUsage(t *testing.T) {
	line := []byte(`data: {"type":"message_start","message":{"usage":{"input_tokens":42}}}`)
	ev, ok, err := DecodeSSELine(line)
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if ev.Usage == nil || ev.Usage.InputTokens != 42 {
		t.Errorf("expected input tokens 42, got %+v", ev.Usage)
	}
}

func TestDecodeSSELineMessageDeltaCapturesOutputUsage(t *testing.T) {
	line := []byte(`data: {"type":"message_delta","usage":{"output_tokens":7}}`)
	ev, ok, err := DecodeSSELine(line)
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if ev.Usage == nil || ev.Usage.OutputTokens != 7 {
		t.Errorf("expected output tokens 7, got %+v", ev.Usage)
	}
}

func TestDecodeSSELineMessageStop(t *testing.T) {
	ev, ok, err := DecodeSSELine([]byte(`data: {"type":"message_stop"}`))
	if err != nil || !ok || ev.Type != EventMessageStop {
		t.Fatalf("unexpected ev=%+v ok=%v err=%v", ev, ok, err)
	}
}

func TestDecodeSSELineError(t *testing.T) {
	ev, ok, err := DecodeSSELine([]byte(`data: {"type":"error","error":{"message":"overloaded"}}`))
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if ev.Type != EventErrorType || ev.Message != "overloaded" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestDecodeSSELineUnknownTypeSkipped(t *testing.T) {
	_, ok, err := DecodeSSELine([]byte(`data: {"type":"ping"}`))
	if ok || err != nil {
		t.Fatalf("expected silent skip for unknown type, ok=%v err=%v", ok, err)
	}
}
