package storyboard

import (
	"testing"

	"github.com/google/uuid"
)

func lyricScene(order uint32, source string, startMS, endMS uint64) Scene {
	return Scene{
		ID:         uuid.New(),
		Order:      order,
		Source:     source,
		Prompt:     source,
		Span:       TimeSpan{StartMS: startMS, EndMS: endMS},
		DurationMS: uint32(endMS - startMS),
	}
}

func TestSplitOverLongScene(t *testing.T) {
	sc := lyricScene(0, "long scene", 0, 10000)
	out := Split([]Scene{sc})
	if len(out) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(out))
	}
	for i, p := range out {
		if p.Metadata.SplitPart == nil || p.Metadata.SplitPart.Total != 2 || p.Metadata.SplitPart.Index != uint32(i+1) {
			t.Errorf("unexpected split_part for part %d: %+v", i, p.Metadata.SplitPart)
		}
		if p.Order != uint32(i) {
			t.Errorf("expected dense order, got %d at index %d", p.Order, i)
		}
	}
	if out[0].Span.EndMS != out[1].Span.StartMS {
		t.Errorf("expected spans to partition contiguously: %+v %+v", out[0].Span, out[1].Span)
	}
	if out[1].Span.EndMS != 10000 {
		t.Errorf("expected final part to end at original end, got %d", out[1].Span.EndMS)
	}
}

func TestSplitRemainderKeepsDurationConsistentWithSpan(t *testing.T) {
	sc := lyricScene(0, "uneven", 0, 17000)
	out := Split([]Scene{sc})
	if len(out) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(out))
	}
	for i, p := range out {
		want := uint32(p.Span.DurationMS())
		if p.DurationMS != want {
			t.Errorf("part %d: duration_ms %d does not match span duration %d", i, p.DurationMS, want)
		}
	}
	if out[2].Span.EndMS != 17000 {
		t.Errorf("expected last part to absorb the remainder up to 17000, got %d", out[2].Span.EndMS)
	}
}

func TestSplitNeverSplitsExplicitTiming(t *testing.T) {
	sc := lyricScene(0, "explicit", 0, 10000)
	sc.Metadata.HasExplicitTiming = true
	out := Split([]Scene{sc})
	if len(out) != 1 {
		t.Fatalf("expected explicit-timed scene untouched, got %d parts", len(out))
	}
	if out[0].Metadata.SplitPart != nil {
		t.Errorf("expected no split_part on authoritative-timing scene")
	}
}

func TestSplitIdempotentOnConformingInput(t *testing.T) {
	scenes := []Scene{
		lyricScene(0, "a", 0, 4000),
		lyricScene(1, "b", 4000, 8000),
	}
	once := Split(scenes)
	twice := Split(once)
	if len(once) != len(twice) {
		t.Fatalf("split not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Span != twice[i].Span || once[i].DurationMS != twice[i].DurationMS {
			t.Errorf("scene %d changed on second split: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestBatchMergesShortConsecutiveScenes(t *testing.T) {
	scenes := []Scene{
		lyricScene(0, "a", 0, 2000),
		lyricScene(1, "b", 2000, 4000),
		lyricScene(2, "c", 4000, 6000),
	}
	out := Batch(scenes)
	if len(out) != 1 {
		t.Fatalf("expected a single batched scene, got %d", len(out))
	}
	if out[0].Metadata.BatchedCount != 3 {
		t.Errorf("expected batched_count 3, got %d", out[0].Metadata.BatchedCount)
	}
	if out[0].Span.StartMS != 0 || out[0].Span.EndMS != 6000 {
		t.Errorf("unexpected merged span: %+v", out[0].Span)
	}
	if len(out[0].Metadata.LyricTimings) != 3 {
		t.Fatalf("expected 3 lyric_timings, got %d", len(out[0].Metadata.LyricTimings))
	}
	if out[0].Metadata.LyricTimings[0].Span.StartMS != 0 {
		t.Errorf("expected first lyric_timing to start at 0")
	}
	last := out[0].Metadata.LyricTimings[len(out[0].Metadata.LyricTimings)-1]
	if last.Span.EndMS != out[0].Span.DurationMS() {
		t.Errorf("expected last lyric_timing to end at scene duration, got %d vs %d", last.Span.EndMS, out[0].Span.DurationMS())
	}
}

func TestBatchNeverExceedsMax(t *testing.T) {
	scenes := []Scene{
		lyricScene(0, "a", 0, 5000),
		lyricScene(1, "b", 5000, 10000),
	}
	out := Batch(scenes)
	for _, sc := range out {
		if sc.DurationMS > 8000 {
			t.Errorf("batch produced a scene exceeding 8000ms: %d", sc.DurationMS)
		}
	}
}

func TestBatchNeverMergesSectionMarkerOrInstrumental(t *testing.T) {
	marker := lyricScene(0, "", 0, 1000)
	marker.Metadata.Section = strPtr("Verse 1")
	instrumental := lyricScene(1, "[Instrumental]", 1000, 3000)
	instrumental.Metadata.IsInstrumental = true
	lyric := lyricScene(2, "a lyric", 3000, 5000)

	out := Batch([]Scene{marker, instrumental, lyric})
	if len(out) != 3 {
		t.Fatalf("expected 3 separate scenes, got %d", len(out))
	}
	for _, sc := range out {
		if sc.Metadata.BatchedCount > 1 {
			t.Errorf("marker/instrumental scene unexpectedly batched: %+v", sc)
		}
	}
}

func TestBatchNeverMergesExplicitOrLLMTimedAcrossBoundary(t *testing.T) {
	explicit := lyricScene(0, "explicit line", 0, 3000)
	explicit.Metadata.HasExplicitTiming = true
	normal := lyricScene(1, "normal line", 3000, 5000)

	out := Batch([]Scene{explicit, normal})
	if len(out) != 2 {
		t.Fatalf("expected explicit-timed scene to stay unbatched, got %d scenes", len(out))
	}
	if out[0].Metadata.BatchedCount != 1 {
		t.Errorf("expected explicit scene batched_count 1, got %d", out[0].Metadata.BatchedCount)
	}
}

func strPtr(s string) *string { return &s }
