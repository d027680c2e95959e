package storyboard

import (
	"math"
	"strings"
)

// PacingPreset selects the base per-line duration for strategy 5.
type PacingPreset string

const (
	PresetFast   PacingPreset = "fast"
	PresetMedium PacingPreset = "medium"
	PresetSlow   PacingPreset = "slow"
)

var presetBaseMS = map[PacingPreset]float64{
	PresetFast:   2500,
	PresetMedium: 4000,
	PresetSlow:   6000,
}

const (
	defaultMinSceneMS     = 1000
	defaultMaxSceneMS     = 10000
	defaultDefaultSceneMS = 4000
)

// LineDurationEstimator is the capability the solver calls into for
// strategy 2 (mixed explicit + LLM): given the subset of lines lacking an
// explicit duration, return an estimated duration in ms for each, in the
// same order. The concrete implementation lives in llmsync.go; the solver
// only depends on this narrow interface so it stays independently testable,
// mirroring how the teacher's AlignLyricsToBeats never reaches into the
// audio analyzer directly.
type LineDurationEstimator interface {
	EstimateDurationsMS(lines []ParsedLine) ([]uint64, error)
}

// SolveInput bundles everything the five timing strategies may need.
type SolveInput struct {
	Lines         []ParsedLine
	MidiSections  []MidiSection // Section -> time ranges, for strategy 4
	TargetMS      *uint64
	Preset        PacingPreset
	MatchTarget   bool
	LLM           LineDurationEstimator // may be nil

	MinSceneMS     uint64
	MaxSceneMS     uint64
	DefaultSceneMS uint64
}

// withDefaults fills zero-valued clamp bounds with the spec's defaults.
func (in SolveInput) withDefaults() SolveInput {
	if in.MinSceneMS == 0 {
		in.MinSceneMS = defaultMinSceneMS
	}
	if in.MaxSceneMS == 0 {
		in.MaxSceneMS = defaultMaxSceneMS
	}
	if in.DefaultSceneMS == 0 {
		in.DefaultSceneMS = defaultDefaultSceneMS
	}
	if in.Preset == "" {
		in.Preset = PresetMedium
	}
	return in
}

// LineDuration is the solver's resolved-duration output for one line.
type LineDuration struct {
	DurationMS        uint64
	HasExplicitTiming bool
	LLMTimingUsed     bool
}

// Solve picks exactly one of the five strategies (priority order per
// spec.md §4.3) and returns a duration in ms for every non-empty line.
func Solve(in SolveInput) ([]LineDuration, []Diagnostic) {
	in = in.withDefaults()
	if len(in.Lines) == 0 {
		return nil, nil
	}

	allExplicit := true
	anyExplicit := false
	for _, l := range in.Lines {
		if l.ExplicitDurationMS != nil {
			anyExplicit = true
		} else {
			allExplicit = false
		}
	}

	switch {
	case allExplicit:
		return solveAllExplicit(in)
	case anyExplicit:
		return solveMixedExplicitLLM(in)
	case hasAnyTimestamp(in.Lines):
		return solveFromTimestamps(in)
	case len(in.MidiSections) > 0:
		return solveMidiWeighted(in)
	default:
		return solvePresetPacing(in)
	}
}

func hasAnyTimestamp(lines []ParsedLine) bool {
	for _, l := range lines {
		if l.TimestampMS != nil {
			return true
		}
	}
	return false
}

// --- Strategy 1: all-explicit ------------------------------------------------

func solveAllExplicit(in SolveInput) ([]LineDuration, []Diagnostic) {
	out := make([]LineDuration, len(in.Lines))
	var sum uint64
	for i, l := range in.Lines {
		d := uint64(*l.ExplicitDurationMS)
		out[i] = LineDuration{DurationMS: d, HasExplicitTiming: true}
		sum += d
	}
	var diags []Diagnostic
	if in.TargetMS != nil {
		diff := int64(sum) - int64(*in.TargetMS)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1000 {
			diags = append(diags, Diagnostic{Message: "explicit durations sum differs from target by more than 1s"})
		}
	}
	return out, diags
}

// --- Strategy 2: mixed explicit + LLM ---------------------------------------

func solveMixedExplicitLLM(in SolveInput) ([]LineDuration, []Diagnostic) {
	out := make([]LineDuration, len(in.Lines))
	var needEstimate []ParsedLine
	var needIdx []int

	for i, l := range in.Lines {
		if l.ExplicitDurationMS != nil {
			out[i] = LineDuration{DurationMS: uint64(*l.ExplicitDurationMS), HasExplicitTiming: true}
		} else {
			needEstimate = append(needEstimate, l)
			needIdx = append(needIdx, i)
		}
	}

	var diags []Diagnostic
	estimates := estimateOrFallback(in, needEstimate, &diags)
	for k, idx := range needIdx {
		out[idx] = LineDuration{DurationMS: estimates[k], LLMTimingUsed: true}
	}

	if in.TargetMS != nil && in.MatchTarget {
		var explicitSum, estimateSum uint64
		for i, l := range in.Lines {
			if l.ExplicitDurationMS != nil {
				explicitSum += out[i].DurationMS
			} else {
				estimateSum += out[i].DurationMS
			}
		}
		residual := int64(*in.TargetMS) - int64(explicitSum)
		if residual > 0 && estimateSum > 0 {
			scale := float64(residual) / float64(estimateSum)
			for _, idx := range needIdx {
				out[idx].DurationMS = clampMS(uint64(float64(out[idx].DurationMS)*scale), in.MinSceneMS, in.MaxSceneMS)
			}
		}
	}

	return out, diags
}

// estimateOrFallback calls the injected LLM estimator; on any failure it
// falls back to the weight-function-based preset estimate, matching the
// Coordinator's documented LlmSyncError recovery (spec.md §4.5, §7).
func estimateOrFallback(in SolveInput, lines []ParsedLine, diags *[]Diagnostic) []uint64 {
	if len(lines) == 0 {
		return nil
	}
	if in.LLM != nil {
		if est, err := in.LLM.EstimateDurationsMS(lines); err == nil && len(est) == len(lines) {
			for i := range est {
				est[i] = clampMS(est[i], in.MinSceneMS, in.MaxSceneMS)
			}
			return est
		}
		*diags = append(*diags, Diagnostic{Message: "llm duration estimate failed, falling back to preset pacing"})
	}
	out := make([]uint64, len(lines))
	base := presetBaseMS[PresetMedium]
	for i, l := range lines {
		out[i] = clampMS(uint64(base*lineWeight(l)), in.MinSceneMS, in.MaxSceneMS)
	}
	return out
}

// --- Strategy 3: from timestamps ---------------------------------------------

func solveFromTimestamps(in SolveInput) ([]LineDuration, []Diagnostic) {
	out := make([]LineDuration, len(in.Lines))
	n := len(in.Lines)
	for i := 0; i < n; i++ {
		if in.Lines[i].TimestampMS == nil {
			out[i] = LineDuration{DurationMS: in.DefaultSceneMS}
			continue
		}
		start := *in.Lines[i].TimestampMS
		if i == n-1 {
			out[i] = LineDuration{DurationMS: in.DefaultSceneMS}
			continue
		}
		var next uint64
		found := false
		for j := i + 1; j < n; j++ {
			if in.Lines[j].TimestampMS != nil {
				next = *in.Lines[j].TimestampMS
				found = true
				break
			}
		}
		if !found {
			out[i] = LineDuration{DurationMS: in.DefaultSceneMS}
			continue
		}
		var d uint64
		if next > start {
			d = next - start
		}
		out[i] = LineDuration{DurationMS: clampMS(d, in.MinSceneMS, in.MaxSceneMS)}
	}
	return out, nil
}

// --- Strategy 4: MIDI-section weighted ---------------------------------------

func solveMidiWeighted(in SolveInput) ([]LineDuration, []Diagnostic) {
	sectionSpan := make(map[string]uint64)
	for _, ms := range in.MidiSections {
		var total uint64
		for _, sp := range ms.Spans {
			total += sp.DurationMS()
		}
		sectionSpan[strings.ToLower(ms.Section)] = total
	}

	// Group line indices by section.
	groups := make(map[string][]int)
	var order []string
	for i, l := range in.Lines {
		key := ""
		if l.Section != nil {
			key = strings.ToLower(*l.Section)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]LineDuration, len(in.Lines))
	for _, key := range order {
		idxs := groups[key]
		span, ok := sectionSpan[key]
		if !ok || span == 0 {
			// No MIDI data for this section: fall back to preset weighting.
			assignPresetWeights(in, idxs, out)
			continue
		}
		weights := make([]float64, len(idxs))
		var sum float64
		for k, idx := range idxs {
			w := lineWeight(in.Lines[idx])
			weights[k] = w
			sum += w
		}
		for k, idx := range idxs {
			var d uint64
			if sum > 0 {
				d = uint64(float64(span) * weights[k] / sum)
			}
			out[idx] = LineDuration{DurationMS: clampMS(d, in.MinSceneMS, in.MaxSceneMS)}
		}
	}

	if in.TargetMS != nil && in.MatchTarget {
		rescaleToTarget(in, out)
	}
	return out, nil
}

func assignPresetWeights(in SolveInput, idxs []int, out []LineDuration) {
	base := presetBaseMS[in.Preset]
	for _, idx := range idxs {
		w := lineWeight(in.Lines[idx])
		out[idx] = LineDuration{DurationMS: clampMS(uint64(base*w), in.MinSceneMS, in.MaxSceneMS)}
	}
}

// --- Strategy 5: preset pacing ------------------------------------------------

func solvePresetPacing(in SolveInput) ([]LineDuration, []Diagnostic) {
	base := presetBaseMS[in.Preset]
	out := make([]LineDuration, len(in.Lines))
	for i, l := range in.Lines {
		w := lineWeight(l)
		out[i] = LineDuration{DurationMS: clampMS(uint64(base*w), in.MinSceneMS, in.MaxSceneMS)}
	}
	if in.TargetMS != nil && in.MatchTarget {
		rescaleToTarget(in, out)
	}
	return out, nil
}

// rescaleToTarget implements the shared target-duration scaling rule used
// by strategies 4 and 5 (strategy 2 scales only its non-explicit lines, in
// solveMixedExplicitLLM): scale every duration by T/D, then re-clamp. Drift
// from the second clamp is accepted, not corrected (spec.md §4.3).
func rescaleToTarget(in SolveInput, out []LineDuration) {
	var sum uint64
	for _, d := range out {
		sum += d.DurationMS
	}
	if sum == 0 || in.TargetMS == nil {
		return
	}
	scale := float64(*in.TargetMS) / float64(sum)
	for i := range out {
		out[i].DurationMS = clampMS(uint64(float64(out[i].DurationMS)*scale), in.MinSceneMS, in.MaxSceneMS)
	}
}

func clampMS(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lineWeight implements the spec's weight function (§4.3). Non-finite
// weights are a caller bug and are not expected to occur given the formula
// below always yields a positive finite value; weights <= 0 are clamped to
// 1.0 defensively.
func lineWeight(l ParsedLine) float64 {
	if l.IsSectionMarker {
		return 0.3
	}

	w := 1.0
	n := len(l.Text)
	switch {
	case n > 100:
		w *= 1.3
	case n > 50:
		w *= 1.1
	case n < 20:
		w *= 0.8
	}

	if l.Section != nil {
		s := strings.ToLower(*l.Section)
		switch {
		case strings.Contains(s, "chorus"):
			w *= 1.2
		case strings.Contains(s, "bridge"):
			w *= 1.1
		case strings.Contains(s, "intro"), strings.Contains(s, "outro"):
			w *= 0.9
		}
	}

	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return 1.0
	}
	return w
}
