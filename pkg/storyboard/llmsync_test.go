package storyboard

import (
	"errors"
	"testing"
)

type stubCapability struct {
	reply string
	err   error
}

func (s stubCapability) Complete(system, user, model string, temperature float32, jsonMode bool) (string, error) {
	return s.reply, s.err
}

func TestParseResponseStrictContract(t *testing.T) {
	raw := `{"version":"1.0","units":"ms","line_count":2,"lyrics":[
		{"line_index":0,"text":"a","start_ms":0,"end_ms":1000},
		{"line_index":1,"text":"b","start_ms":1000,"end_ms":2500}
	]}`
	lines := []ParsedLine{{Text: "a"}, {Text: "b"}}
	results, err := ParseResponse(raw, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Span == nil || results[0].Span.DurationMS() != 1000 {
		t.Errorf("unexpected first span: %+v", results[0].Span)
	}
	if results[1].Span == nil || results[1].Span.DurationMS() != 1500 {
		t.Errorf("unexpected second span: %+v", results[1].Span)
	}
}

func TestParseResponseStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"version\":\"1.0\",\"units\":\"ms\",\"line_count\":1,\"lyrics\":[{\"line_index\":0,\"text\":\"a\",\"start_ms\":0,\"end_ms\":500}]}\n```"
	lines := []ParsedLine{{Text: "a"}}
	results, err := ParseResponse(raw, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Span == nil || results[0].Span.EndMS != 500 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestParseResponseLegacyArrayShape(t *testing.T) {
	raw := `[{"text":"a","start":0,"end":1.5},{"text":"b","start":1.5,"end":3}]`
	lines := []ParsedLine{{Text: "a"}, {Text: "b"}}
	results, err := ParseResponse(raw, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Span == nil || results[0].Span.EndMS != 1500 {
		t.Fatalf("expected seconds converted to ms, got %+v", results[0].Span)
	}
}

func TestParseResponseLegacyKeyedShape(t *testing.T) {
	raw := `{"captions":[{"text":"a","startMs":0,"endMs":900}]}`
	lines := []ParsedLine{{Text: "a"}}
	results, err := ParseResponse(raw, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Span == nil || results[0].Span.EndMS != 900 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestParseResponseUnparseableReturnsLlmSyncError(t *testing.T) {
	lines := []ParsedLine{{Text: "a"}}
	_, err := ParseResponse("not json at all", lines)
	if err == nil {
		t.Fatal("expected an error")
	}
	var lse *LlmSyncError
	if !errors.As(err, &lse) {
		t.Fatalf("expected *LlmSyncError, got %T", err)
	}
	if lse.Kind != "unparseable" {
		t.Errorf("expected unparseable kind, got %s", lse.Kind)
	}
	if !errors.Is(err, ErrLLMUnparseable) {
		t.Errorf("expected errors.Is to match ErrLLMUnparseable")
	}
}

func TestParseResponseLineCountMismatch(t *testing.T) {
	raw := `{"version":"1.0","units":"ms","line_count":1,"lyrics":[{"line_index":0,"text":"a","start_ms":0,"end_ms":500}]}`
	lines := []ParsedLine{{Text: "a"}, {Text: "b"}}
	_, err := ParseResponse(raw, lines)
	if !errors.Is(err, ErrLLMLineCountMismatch) {
		t.Fatalf("expected line count mismatch error, got %v", err)
	}
}

func TestMergeFragmentsToLines(t *testing.T) {
	// Two original lines, three fragments: "hello" + "there" merge into
	// line 0, "world" matches line 1.
	lines := []ParsedLine{{Text: "hello there"}, {Text: "world"}}
	frags := []fragment{
		{Text: "hello", Span: &TimeSpan{StartMS: 0, EndMS: 300}},
		{Text: "there", Span: &TimeSpan{StartMS: 300, EndMS: 600}},
		{Text: "world", Span: &TimeSpan{StartMS: 600, EndMS: 900}},
	}
	results, err := mergeFragmentsToLines(frags, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Span == nil || results[0].Span.StartMS != 0 || results[0].Span.EndMS != 600 {
		t.Errorf("unexpected merged span for line 0: %+v", results[0].Span)
	}
	if results[1].Span == nil || results[1].Span.StartMS != 600 || results[1].Span.EndMS != 900 {
		t.Errorf("unexpected span for line 1: %+v", results[1].Span)
	}
}

func TestBridgeRequestLineTimingsTransportError(t *testing.T) {
	cap := stubCapability{err: errors.New("connection refused")}
	bridge := NewBridge(cap, "test-model")
	_, err := bridge.RequestLineTimings([]ParsedLine{{Text: "a"}}, 1000)
	var lse *LlmSyncError
	if !errors.As(err, &lse) || lse.Kind != "transport" {
		t.Fatalf("expected transport LlmSyncError, got %v", err)
	}
}

func TestApplyBatchedTiming(t *testing.T) {
	results := []llmLineResult{
		{Text: "a", Span: &TimeSpan{StartMS: 0, EndMS: 500}},
		{Text: "b", Span: &TimeSpan{StartMS: 500, EndMS: 1200}},
		{Text: "c", Span: &TimeSpan{StartMS: 1200, EndMS: 1800}},
	}
	span, timings, next, ok := ApplyBatchedTiming(results, 0, 2)
	if !ok {
		t.Fatal("expected ok")
	}
	if span.StartMS != 0 || span.EndMS != 1200 {
		t.Errorf("unexpected batched span: %+v", span)
	}
	if len(timings) != 2 {
		t.Fatalf("expected 2 member timings, got %d", len(timings))
	}
	if next != 2 {
		t.Errorf("expected next offset 2, got %d", next)
	}
}

func TestLineDurationEstimatorFallsBackOnUnderfilledEstimate(t *testing.T) {
	cap := stubCapability{reply: `{"version":"1.0","units":"ms","line_count":1,"lyrics":[{"line_index":0,"text":"a","start_ms":null,"end_ms":null}]}`}
	bridge := NewBridge(cap, "test-model")
	est := NewLineDurationEstimator(bridge, 5000)
	durations, err := est.EstimateDurationsMS([]ParsedLine{{Text: "a"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0] != defaultDefaultSceneMS {
		t.Errorf("expected fallback default duration, got %d", durations[0])
	}
}
