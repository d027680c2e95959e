package storyboard

import "testing"

func TestFillGapsScenarioE(t *testing.T) {
	lyrics := []TimedLyric{
		{Text: "first", Span: TimeSpan{StartMS: 0, EndMS: 4000}},
		{Text: "second", Span: TimeSpan{StartMS: 10000, EndMS: 14000}},
	}
	out := FillGaps(lyrics, 14000, 1000)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out[0].Text != "first" {
		t.Errorf("expected first lyric preserved, got %q", out[0].Text)
	}
	if out[1].Text != "[Instrumental]" || out[1].Span.StartMS != 4000 || out[1].Span.EndMS != 10000 {
		t.Errorf("unexpected instrumental gap: %+v", out[1])
	}
	if out[2].Text != "second" {
		t.Errorf("expected second lyric preserved, got %q", out[2].Text)
	}
}

func TestFillGapsLeadingGap(t *testing.T) {
	lyrics := []TimedLyric{{Text: "a", Span: TimeSpan{StartMS: 2000, EndMS: 4000}}}
	out := FillGaps(lyrics, 4000, 1000)
	if len(out) != 2 {
		t.Fatalf("expected leading instrumental, got %d entries", len(out))
	}
	if out[0].Text != "[Instrumental]" || out[0].Span.StartMS != 0 || out[0].Span.EndMS != 2000 {
		t.Errorf("unexpected leading gap: %+v", out[0])
	}
}

func TestFillGapsTrailingGap(t *testing.T) {
	lyrics := []TimedLyric{{Text: "a", Span: TimeSpan{StartMS: 0, EndMS: 2000}}}
	out := FillGaps(lyrics, 5000, 1000)
	if len(out) != 2 {
		t.Fatalf("expected trailing instrumental, got %d entries", len(out))
	}
	last := out[len(out)-1]
	if last.Text != "[Instrumental]" || last.Span.StartMS != 2000 || last.Span.EndMS != 5000 {
		t.Errorf("unexpected trailing gap: %+v", last)
	}
}

func TestFillGapsNoGapBelowThreshold(t *testing.T) {
	lyrics := []TimedLyric{
		{Text: "a", Span: TimeSpan{StartMS: 0, EndMS: 4000}},
		{Text: "b", Span: TimeSpan{StartMS: 4500, EndMS: 8000}},
	}
	out := FillGaps(lyrics, 8000, 1000)
	if len(out) != 2 {
		t.Fatalf("expected no inserted instrumental for sub-threshold gap, got %d entries", len(out))
	}
}

func TestFillGapsPreservesOriginalSpans(t *testing.T) {
	lyrics := []TimedLyric{
		{Text: "a", Span: TimeSpan{StartMS: 0, EndMS: 4000}},
		{Text: "b", Span: TimeSpan{StartMS: 10000, EndMS: 14000}},
	}
	out := FillGaps(lyrics, 14000, 1000)
	var originals []TimedLyric
	for _, l := range out {
		if l.Text != "[Instrumental]" {
			originals = append(originals, l)
		}
	}
	if len(originals) != len(lyrics) {
		t.Fatalf("expected %d original lyrics preserved, got %d", len(lyrics), len(originals))
	}
	for i, l := range originals {
		if l.Span != lyrics[i].Span {
			t.Errorf("original lyric %d span changed: %+v vs %+v", i, l.Span, lyrics[i].Span)
		}
	}
}
