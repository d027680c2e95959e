package storyboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LLMCapability is the single external collaborator the bridge depends on:
// given a system/user prompt pair, a model id, and a temperature, return the
// model's text reply (spec.md §6). Network, auth and retries are entirely
// the implementation's concern; the bridge treats every failure the same
// way (surfaced as an LlmSyncError of Kind "transport").
type LLMCapability interface {
	Complete(system, user, model string, temperature float32, jsonMode bool) (string, error)
}

// FragmentMergeSimilarityThreshold is the accept threshold for matching a
// run of LLM-returned fragments back to one original line (spec.md §4.5,
// §9 Open Questions). Some source comments suggested 0.7 was intended; the
// spec pins 0.6. It is a named compile-time constant, so the value used
// at run time is always 0.6.
const FragmentMergeSimilarityThreshold = 0.6

// Bridge implements the LLM Sync Bridge (C5): it serializes lyrics, invokes
// an injected LLMCapability under the Strict Contract v1.0 (preferred) or a
// defensively-parsed legacy shape, and reconciles the result back to one
// TimedLyric per input line.
type Bridge struct {
	Capability  LLMCapability
	Model       string
	Temperature float32
}

// NewBridge builds a Bridge over an injected capability.
func NewBridge(cap LLMCapability, model string) *Bridge {
	return &Bridge{Capability: cap, Model: model, Temperature: 0.2}
}

// strictContractSystemPrompt is carried verbatim to every provider, per
// spec.md §4.5 ("Providers must not silently alter them").
const strictContractSystemPrompt = `You are a lyric-timing assistant. Output exactly one JSON object matching this schema, with no code fences and no commentary:
{"version":"1.0","units":"ms","line_count":N,"lyrics":[{"line_index":0,"text":"...","start_ms":0,"end_ms":0}, ...]}
start_ms and end_ms are integers, or null when the line cannot be aligned. 0 <= start_ms < end_ms <= total_duration_ms. Emit exactly one entry per input line, in input order. Never merge or split lines.`

type strictContractLyric struct {
	LineIndex int    `json:"line_index"`
	Text      string `json:"text"`
	StartMS   *int64 `json:"start_ms"`
	EndMS     *int64 `json:"end_ms"`
}

type strictContractResponse struct {
	Version   string                 `json:"version"`
	Units     string                 `json:"units"`
	LineCount int                    `json:"line_count"`
	Lyrics    []strictContractLyric  `json:"lyrics"`
}

// llmLineResult is the bridge's normalized per-line result: nil span means
// "unalignable", matching the Strict Contract's null start_ms/end_ms.
type llmLineResult struct {
	Text string
	Span *TimeSpan
}

// RequestLineTimings calls the capability under the Strict Contract and
// parses the reply with ParseResponse, which also accepts the legacy
// response shapes.
func (b *Bridge) RequestLineTimings(lines []ParsedLine, totalDurationMS uint64) ([]llmLineResult, error) {
	user := buildUserPrompt(lines, totalDurationMS)
	raw, err := b.Capability.Complete(strictContractSystemPrompt, user, b.Model, b.Temperature, true)
	if err != nil {
		return nil, &LlmSyncError{Kind: "transport", Inner: err}
	}
	return ParseResponse(raw, lines)
}

func buildUserPrompt(lines []ParsedLine, totalDurationMS uint64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total_duration_ms=%d\nlines:\n", totalDurationMS)
	for i, l := range lines {
		fmt.Fprintf(&sb, "%d: %s\n", i, l.Text)
	}
	return sb.String()
}

// ParseResponse parses a raw LLM reply, preferring the Strict Contract and
// falling back to a defensively-parsed legacy shape, then merges fragments
// back to the original line count when the provider over-segmented.
func ParseResponse(raw string, lines []ParsedLine) ([]llmLineResult, error) {
	cleaned := stripCodeFences(raw)

	if strict, ok := tryParseStrictContract(cleaned); ok {
		return reconcileStrict(strict, lines)
	}

	if items, ok := tryParseLegacyShape(cleaned); ok {
		return reconcileLegacy(items, lines)
	}

	excerpt := cleaned
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return nil, &LlmSyncError{Kind: "unparseable", Excerpt: excerpt}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func tryParseStrictContract(raw string) (strictContractResponse, bool) {
	var resp strictContractResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return strictContractResponse{}, false
	}
	if resp.Version == "" || resp.Lyrics == nil {
		return strictContractResponse{}, false
	}
	return resp, true
}

func reconcileStrict(resp strictContractResponse, lines []ParsedLine) ([]llmLineResult, error) {
	if len(resp.Lyrics) > len(lines) {
		merged, err := mergeFragmentsToLines(strictLyricsToFragments(resp.Lyrics), lines)
		if err != nil {
			return nil, err
		}
		return merged, nil
	}
	if len(resp.Lyrics) < len(lines) {
		return nil, &LlmSyncError{Kind: "line_count_mismatch", Expected: len(lines), Got: len(resp.Lyrics)}
	}
	out := make([]llmLineResult, len(lines))
	for i, item := range resp.Lyrics {
		out[i] = llmLineResult{Text: lines[i].Text}
		if item.StartMS != nil && item.EndMS != nil && *item.EndMS > *item.StartMS {
			out[i].Span = &TimeSpan{StartMS: uint64(*item.StartMS), EndMS: uint64(*item.EndMS)}
		}
	}
	return out, nil
}

// legacyItem is the normalized shape of one legacy-format timed entry,
// already converted to milliseconds.
type legacyItem struct {
	Text    string
	StartMS int64
	EndMS   int64
	HasTime bool
}

func tryParseLegacyShape(raw string) ([]legacyItem, bool) {
	var arr []map[string]any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return legacyItemsFromSlice(arr), true
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	for _, key := range []string{"captions", "lyrics", "lyrics_timing"} {
		if v, ok := obj[key]; ok {
			if list, ok := v.([]any); ok {
				var maps []map[string]any
				for _, e := range list {
					if m, ok := e.(map[string]any); ok {
						maps = append(maps, m)
					}
				}
				return legacyItemsFromSlice(maps), true
			}
		}
	}
	return nil, false
}

func legacyItemsFromSlice(arr []map[string]any) []legacyItem {
	out := make([]legacyItem, 0, len(arr))
	for _, m := range arr {
		text, _ := m["text"].(string)
		item := legacyItem{Text: text}

		if s, e, ok := msFieldPair(m, "startMs", "endMs"); ok {
			item.StartMS, item.EndMS, item.HasTime = s, e, true
		} else if s, e, ok := msFieldPair(m, "start_ms", "end_ms"); ok {
			item.StartMS, item.EndMS, item.HasTime = s, e, true
		} else if s, e, ok := secFieldPair(m, "start", "end"); ok {
			item.StartMS, item.EndMS, item.HasTime = s, e, true
		} else if s, e, ok := secFieldPair(m, "start_time", "end_time"); ok {
			item.StartMS, item.EndMS, item.HasTime = s, e, true
		}
		out = append(out, item)
	}
	return out
}

func msFieldPair(m map[string]any, startKey, endKey string) (int64, int64, bool) {
	s, ok1 := numField(m, startKey)
	e, ok2 := numField(m, endKey)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return int64(s), int64(e), true
}

func secFieldPair(m map[string]any, startKey, endKey string) (int64, int64, bool) {
	s, ok1 := numField(m, startKey)
	e, ok2 := numField(m, endKey)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return int64(s * 1000), int64(e * 1000), true
}

func numField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func reconcileLegacy(items []legacyItem, lines []ParsedLine) ([]llmLineResult, error) {
	if len(items) > len(lines) {
		var frags []fragment
		for _, it := range items {
			f := fragment{Text: it.Text}
			if it.HasTime {
				f.Span = &TimeSpan{StartMS: uint64(it.StartMS), EndMS: uint64(it.EndMS)}
			}
			frags = append(frags, f)
		}
		return mergeFragmentsToLines(frags, lines)
	}
	if len(items) < len(lines) {
		return nil, &LlmSyncError{Kind: "line_count_mismatch", Expected: len(lines), Got: len(items)}
	}
	out := make([]llmLineResult, len(lines))
	for i, it := range items {
		out[i] = llmLineResult{Text: lines[i].Text}
		if it.HasTime && it.EndMS > it.StartMS {
			out[i].Span = &TimeSpan{StartMS: uint64(it.StartMS), EndMS: uint64(it.EndMS)}
		}
	}
	return out, nil
}

// fragment is one LLM-returned timed unit before it has been matched back
// to an original line.
type fragment struct {
	Text string
	Span *TimeSpan
}

func strictLyricsToFragments(items []strictContractLyric) []fragment {
	out := make([]fragment, len(items))
	for i, it := range items {
		f := fragment{Text: it.Text}
		if it.StartMS != nil && it.EndMS != nil && *it.EndMS > *it.StartMS {
			f.Span = &TimeSpan{StartMS: uint64(*it.StartMS), EndMS: uint64(*it.EndMS)}
		}
		out[i] = f
	}
	return out
}

// mergeFragmentsToLines implements the fragment-merge rule (spec.md §4.5):
// for each original line, greedily take 1-4 consecutive unused fragments
// and accept the best combination with a fuzzy similarity >= the merge
// threshold. The merged span uses the first fragment's start and the last
// fragment's end. Originals that find no acceptable combination are
// skipped (left without a span), not erred.
func mergeFragmentsToLines(frags []fragment, lines []ParsedLine) ([]llmLineResult, error) {
	out := make([]llmLineResult, len(lines))
	used := make([]bool, len(frags))
	cursor := 0

	for i, line := range lines {
		out[i] = llmLineResult{Text: line.Text}
		best := -1
		bestCount := 0
		bestSim := 0.0

		for count := 1; count <= 4; count++ {
			start := cursor
			if start+count > len(frags) {
				break
			}
			skipUsed := false
			for k := 0; k < count; k++ {
				if used[start+k] {
					skipUsed = true
					break
				}
			}
			if skipUsed {
				continue
			}
			var combined strings.Builder
			for k := 0; k < count; k++ {
				if k > 0 {
					combined.WriteString(" ")
				}
				combined.WriteString(frags[start+k].Text)
			}
			sim := fuzzySimilarity(line.Text, combined.String())
			if sim >= FragmentMergeSimilarityThreshold && sim > bestSim {
				bestSim = sim
				best = start
				bestCount = count
			}
		}

		if best < 0 {
			continue
		}

		var firstSpan, lastSpan *TimeSpan
		for k := 0; k < bestCount; k++ {
			used[best+k] = true
			if frags[best+k].Span != nil {
				if firstSpan == nil {
					firstSpan = frags[best+k].Span
				}
				lastSpan = frags[best+k].Span
			}
		}
		if firstSpan != nil && lastSpan != nil {
			out[i].Span = &TimeSpan{StartMS: firstSpan.StartMS, EndMS: lastSpan.EndMS}
		}
		cursor = best + bestCount
	}

	return out, nil
}

// fuzzySimilarity is the ratio of the longest common (token) subsequence
// length over the max token count of the two texts, used to score a
// fragment-combination match.
func fuzzySimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	pairs := lcsPairs(ta, tb)
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(len(pairs)) / float64(denom)
}

// ApplyBatchedTiming consumes exactly scene.Metadata.BatchedCount consecutive
// LLM timings (or exactly one for a non-batched scene) and returns the
// scene's resolved span plus, for batched scenes, the per-member lyric
// timings (spec.md §4.5 "Batched-scene timing application").
func ApplyBatchedTiming(results []llmLineResult, offset int, batchedCount uint32) (TimeSpan, []LyricTiming, int, bool) {
	n := int(batchedCount)
	if n < 1 {
		n = 1
	}
	if offset+n > len(results) {
		return TimeSpan{}, nil, offset, false
	}

	var lyricTimings []LyricTiming
	var first, last *TimeSpan
	for k := 0; k < n; k++ {
		r := results[offset+k]
		if r.Span == nil {
			continue
		}
		if first == nil {
			first = r.Span
		}
		last = r.Span
		lyricTimings = append(lyricTimings, LyricTiming{Text: r.Text, Span: *r.Span})
	}
	if first == nil || last == nil {
		return TimeSpan{}, nil, offset + n, false
	}
	return TimeSpan{StartMS: first.StartMS, EndMS: last.EndMS}, lyricTimings, offset + n, true
}

// llmEstimator adapts a Bridge to the timing solver's narrow
// LineDurationEstimator interface, converting resolved spans to durations
// and falling back line-by-line when a line comes back unalignable.
type llmEstimator struct {
	bridge          *Bridge
	totalDurationMS uint64
}

// NewLineDurationEstimator wraps a Bridge for use as SolveInput.LLM.
func NewLineDurationEstimator(bridge *Bridge, totalDurationMS uint64) LineDurationEstimator {
	return &llmEstimator{bridge: bridge, totalDurationMS: totalDurationMS}
}

func (e *llmEstimator) EstimateDurationsMS(lines []ParsedLine) ([]uint64, error) {
	results, err := e.bridge.RequestLineTimings(lines, e.totalDurationMS)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(lines))
	for i, r := range results {
		if r.Span != nil {
			out[i] = r.Span.DurationMS()
		} else {
			out[i] = defaultDefaultSceneMS
		}
	}
	return out, nil
}
