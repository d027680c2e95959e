package storyboard

import "strings"

// MaxSceneMS is the hard per-scene ceiling enforced by Split (spec.md §4.7).
const MaxSceneMS = 8000

// TargetBatchMS is the running-sum ceiling Batch packs consecutive scenes
// toward.
const TargetBatchMS = 8000

// Split breaks every scene longer than MaxSceneMS into n equal-length parts,
// where n = floor(duration/MaxSceneMS) + 1, and densifies Order across the
// result. Scenes flagged HasExplicitTiming or LLMTimingUsed are authoritative
// and are never split (spec.md §4.7).
func Split(scenes []Scene) []Scene {
	out := make([]Scene, 0, len(scenes))

	for _, sc := range scenes {
		if sc.DurationMS <= MaxSceneMS || sc.Metadata.HasExplicitTiming || sc.Metadata.LLMTimingUsed {
			out = append(out, sc)
			continue
		}

		n := uint32(sc.DurationMS/MaxSceneMS) + 1
		spanStart := sc.Span.StartMS
		totalSpanMS := sc.Span.DurationMS()
		partSpanMS := totalSpanMS / uint64(n)

		for k := uint32(1); k <= n; k++ {
			part := sc
			partStart := spanStart + uint64(k-1)*partSpanMS
			partEnd := partStart + partSpanMS
			if k == n {
				partEnd = sc.Span.EndMS
			}
			part.Span = TimeSpan{StartMS: partStart, EndMS: partEnd}
			part.DurationMS = uint32(part.Span.DurationMS())
			sp := SplitPart{Index: k, Total: n}
			part.Metadata.SplitPart = &sp
			if k > 1 {
				part.StartFrame = nil
			}
			if k < n {
				part.EndFrame = nil
			}
			out = append(out, part)
		}
	}

	densifyOrder(out)
	return out
}

// Batch greedily merges consecutive lyric scenes so their accumulated
// duration approaches TargetBatchMS without exceeding it. Section-marker
// placeholders, instrumental scenes, and scenes with authoritative
// (explicit or LLM) timing are never merged — each passes through as a
// single-member batch (spec.md §4.7).
func Batch(scenes []Scene) []Scene {
	out := make([]Scene, 0, len(scenes))
	var group []Scene
	var accumMS uint64

	flush := func() {
		if len(group) == 0 {
			return
		}
		out = append(out, mergeBatch(group))
		group = nil
		accumMS = 0
	}

	for _, sc := range scenes {
		if !isBatchMergeable(sc) {
			flush()
			single := sc
			if single.Metadata.BatchedCount == 0 {
				single.Metadata.BatchedCount = 1
			}
			out = append(out, single)
			continue
		}

		if len(group) > 0 && accumMS+uint64(sc.DurationMS) > TargetBatchMS {
			flush()
		}
		group = append(group, sc)
		accumMS += uint64(sc.DurationMS)
	}
	flush()

	densifyOrder(out)
	return out
}

func isBatchMergeable(sc Scene) bool {
	if sc.Source == "" {
		return false // section-marker placeholder
	}
	if sc.Metadata.IsInstrumental {
		return false
	}
	if sc.Metadata.HasExplicitTiming || sc.Metadata.LLMTimingUsed {
		return false
	}
	return true
}

// mergeBatch collapses a run of mergeable scenes into one. A single-member
// group passes through with BatchedCount forced to 1.
func mergeBatch(group []Scene) Scene {
	if len(group) == 1 {
		sc := group[0]
		sc.Metadata.BatchedCount = 1
		return sc
	}

	first, last := group[0], group[len(group)-1]
	merged := first
	merged.Span = TimeSpan{StartMS: first.Span.StartMS, EndMS: last.Span.EndMS}
	merged.DurationMS = uint32(merged.Span.DurationMS())
	merged.EndFrame = last.EndFrame
	merged.ReferenceImages = first.ReferenceImages

	var sources, prompts []string
	lyricTimings := make([]LyricTiming, 0, len(group))
	for _, m := range group {
		sources = append(sources, m.Source)
		prompts = append(prompts, m.Prompt)
		lyricTimings = append(lyricTimings, LyricTiming{
			Text: m.Source,
			Span: TimeSpan{
				StartMS: m.Span.StartMS - merged.Span.StartMS,
				EndMS:   m.Span.EndMS - merged.Span.StartMS,
			},
		})
	}
	merged.Source = strings.Join(sources, "\n")
	merged.Prompt = strings.Join(prompts, "\n")
	merged.Metadata.BatchedCount = uint32(len(group))
	merged.Metadata.LyricTimings = lyricTimings
	return merged
}

// densifyOrder reassigns Order = 0..n-1 in place, per the "order
// re-densification after each pass" rule (spec.md §4.7).
func densifyOrder(scenes []Scene) {
	for i := range scenes {
		scenes[i].Order = uint32(i)
	}
}
