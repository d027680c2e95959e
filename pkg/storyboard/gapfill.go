package storyboard

// DefaultGapThresholdMS is the minimum silent gap (G) that earns a synthetic
// instrumental scene (spec.md §4.6).
const DefaultGapThresholdMS = 1000

// instrumentalSectionLabel is the section label stamped on every synthetic
// instrumental produced by FillGaps.
const instrumentalSectionLabel = "instrumental"

// FillGaps walks a sorted TimedLyric list and inserts a synthetic
// "[Instrumental]" entry for every silent span that is at least gapMS long:
// before the first lyric, between consecutive lyrics, and after the last
// one. Non-synthetic entries keep their relative order and count (spec.md
// §4.6) — this mirrors the teacher's distributeEvenly's pass-through of
// already-timed entries in pkg/lyrics/parser.go, generalized to insertion
// rather than redistribution.
func FillGaps(lyrics []TimedLyric, totalDurationMS uint64, gapMS uint64) []TimedLyric {
	out, _ := fillGapsIndexed(lyrics, totalDurationMS, gapMS)
	return out
}

// FillGapsIndexed behaves exactly like FillGaps but also returns a
// lockstep "synthetic" marker for each output entry, so a caller that needs
// to carry per-original-line metadata (the Coordinator's explicit/LLM
// timing flags) through the insertion can tell a synthesized instrumental
// apart from a genuine input line whose text happens to be the literal
// "[Instrumental]" string — text alone is not a reliable enough signal.
func FillGapsIndexed(lyrics []TimedLyric, totalDurationMS uint64, gapMS uint64) ([]TimedLyric, []bool) {
	return fillGapsIndexed(lyrics, totalDurationMS, gapMS)
}

func fillGapsIndexed(lyrics []TimedLyric, totalDurationMS uint64, gapMS uint64) ([]TimedLyric, []bool) {
	if gapMS == 0 {
		gapMS = DefaultGapThresholdMS
	}
	if len(lyrics) == 0 {
		if totalDurationMS >= gapMS {
			return []TimedLyric{instrumentalSpan(0, totalDurationMS)}, []bool{true}
		}
		return nil, nil
	}

	out := make([]TimedLyric, 0, len(lyrics)+2)
	synthetic := make([]bool, 0, len(lyrics)+2)

	if lyrics[0].Span.StartMS >= gapMS {
		out = append(out, instrumentalSpan(0, lyrics[0].Span.StartMS))
		synthetic = append(synthetic, true)
	}

	for i, l := range lyrics {
		out = append(out, l)
		synthetic = append(synthetic, false)
		if i == len(lyrics)-1 {
			continue
		}
		next := lyrics[i+1]
		if l.Span.EndMS+gapMS <= next.Span.StartMS {
			out = append(out, instrumentalSpan(l.Span.EndMS, next.Span.StartMS))
			synthetic = append(synthetic, true)
		}
	}

	last := lyrics[len(lyrics)-1]
	if totalDurationMS > last.Span.EndMS && totalDurationMS-last.Span.EndMS >= gapMS {
		out = append(out, instrumentalSpan(last.Span.EndMS, totalDurationMS))
		synthetic = append(synthetic, true)
	}

	return out, synthetic
}

func instrumentalSpan(startMS, endMS uint64) TimedLyric {
	section := instrumentalSectionLabel
	return TimedLyric{
		Text:    "[Instrumental]",
		Span:    TimeSpan{StartMS: startMS, EndMS: endMS},
		Section: &section,
	}
}
