package llm

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func streamFrom(lines ...string) *readerStream {
	return newReaderStream(io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))))
}

func TestReaderStreamEvents(t *testing.T) {
	s := streamFrom(
		`{"type":"system","subtype":"init"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}}`,
		`{"type":"result","is_error":false,"result":"hello world"}`,
	)
	defer s.Close()

	ev, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "system" {
		t.Errorf("expected system event, got %q", ev.Type)
	}

	ev, err = s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "assistant" || len(ev.Blocks) != 2 {
		t.Fatalf("expected assistant event with 2 blocks, got %+v", ev)
	}
	if ev.Blocks[0].Text != "hello " {
		t.Errorf("unexpected block text %q", ev.Blocks[0].Text)
	}

	ev, err = s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "result" || ev.Result != "hello world" {
		t.Errorf("unexpected result event %+v", ev)
	}

	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderStreamSkipsGarbageLines(t *testing.T) {
	s := streamFrom(
		"not json at all",
		"",
		`{"type":"assistant","message":{"content":[{"type":"text","text":"ok"}]}}`,
	)
	defer s.Close()

	ev, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "assistant" {
		t.Errorf("expected assistant event, got %q", ev.Type)
	}
}

func TestCollectTextPrefersResult(t *testing.T) {
	s := streamFrom(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`,
		`{"type":"result","is_error":false,"result":"final text"}`,
	)
	defer s.Close()

	text, err := CollectText(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "final text" {
		t.Errorf("expected result text, got %q", text)
	}
}

func TestCollectTextConcatenatesBlocks(t *testing.T) {
	s := streamFrom(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"a"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"b"}]}}`,
	)
	defer s.Close()

	text, err := CollectText(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ab" {
		t.Errorf("expected concatenated text, got %q", text)
	}
}

func TestCollectTextErrorResult(t *testing.T) {
	s := streamFrom(`{"type":"result","is_error":true,"result":"rate limited"}`)
	defer s.Close()

	if _, err := CollectText(s); err == nil {
		t.Error("expected error from error result")
	}
}

func TestExtractJSON(t *testing.T) {
	got := ExtractJSON(`Here you go: {"user_stories": [{"title": "A"}]} hope that helps`)
	if got == nil {
		t.Fatal("expected object, got nil")
	}
	stories, ok := got["user_stories"].([]any)
	if !ok || len(stories) != 1 {
		t.Fatalf("unexpected user_stories value: %v", got["user_stories"])
	}
}

func TestExtractJSONNested(t *testing.T) {
	got := ExtractJSON(`{"outer": {"inner": 1}}`)
	if got == nil {
		t.Fatal("expected object, got nil")
	}
	if _, ok := got["outer"].(map[string]any); !ok {
		t.Errorf("expected nested object, got %v", got["outer"])
	}
}

func TestExtractJSONFailures(t *testing.T) {
	cases := []string{
		"no braces here",
		"{broken json}",
		"}{",
		"",
	}
	for _, c := range cases {
		if got := ExtractJSON(c); got != nil {
			t.Errorf("ExtractJSON(%q) = %v, want nil", c, got)
		}
	}
}
