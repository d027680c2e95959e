package storyboard

import "testing"

func u32(v uint32) *uint32 { return &v }
func u64(v uint64) *uint64 { return &v }

func TestSolveAllExplicit(t *testing.T) {
	lines := []ParsedLine{
		{Text: "a", ExplicitDurationMS: u32(3000)},
		{Text: "b", ExplicitDurationMS: u32(10000)},
	}
	out, _ := Solve(SolveInput{Lines: lines})
	if len(out) != 2 {
		t.Fatalf("expected 2 durations, got %d", len(out))
	}
	if out[0].DurationMS != 3000 || !out[0].HasExplicitTiming {
		t.Errorf("unexpected first duration %+v", out[0])
	}
	if out[1].DurationMS != 10000 || !out[1].HasExplicitTiming {
		t.Errorf("unexpected second duration %+v", out[1])
	}
}

func TestSolveFromTimestamps(t *testing.T) {
	lines := []ParsedLine{
		{Text: "A", TimestampMS: u64(0)},
		{Text: "B", TimestampMS: u64(3000)},
		{Text: "C", TimestampMS: u64(7000)},
	}
	out, _ := Solve(SolveInput{Lines: lines})
	want := []uint64{3000, 4000, 4000}
	for i, w := range want {
		if out[i].DurationMS != w {
			t.Errorf("line %d: want %d, got %d", i, w, out[i].DurationMS)
		}
	}
}

func TestSolvePresetPacingScenarioA(t *testing.T) {
	lines := []ParsedLine{{Text: "Line one"}, {Text: "Line two"}}
	out, _ := Solve(SolveInput{Lines: lines, Preset: PresetMedium})
	for i, d := range out {
		if d.DurationMS != 4000 {
			t.Errorf("line %d: expected clamped 4000ms, got %d", i, d.DurationMS)
		}
	}
}

type stubEstimator struct {
	durations []uint64
	err       error
}

func (s stubEstimator) EstimateDurationsMS(lines []ParsedLine) ([]uint64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.durations, nil
}

func TestSolveMixedExplicitLLM(t *testing.T) {
	lines := []ParsedLine{
		{Text: "a", ExplicitDurationMS: u32(3000)},
		{Text: "b"},
	}
	est := stubEstimator{durations: []uint64{5000}}
	out, _ := Solve(SolveInput{Lines: lines, LLM: est})
	if !out[0].HasExplicitTiming || out[0].DurationMS != 3000 {
		t.Errorf("explicit line altered: %+v", out[0])
	}
	if !out[1].LLMTimingUsed || out[1].DurationMS != 5000 {
		t.Errorf("unexpected llm-estimated duration: %+v", out[1])
	}
}

func TestSolveMidiWeightedProportionalToSectionSpan(t *testing.T) {
	section := "Verse"
	lines := []ParsedLine{
		{Text: "a line of about medium length", Section: &section},
		{Text: "another line of similar length", Section: &section},
	}
	sections := []MidiSection{
		{Section: "verse", Spans: []TimeSpan{{StartMS: 0, EndMS: 10000}}},
	}
	out, _ := Solve(SolveInput{Lines: lines, MidiSections: sections})
	var sum uint64
	for _, d := range out {
		sum += d.DurationMS
	}
	if sum < 9000 || sum > 10000 {
		t.Errorf("expected durations to sum close to the 10000ms section span, got %d", sum)
	}
	if out[0].DurationMS != out[1].DurationMS {
		t.Errorf("expected equal-weight lines to split the section span evenly, got %+v", out)
	}
}

func TestSolveMidiWeightedFallsBackWithoutSectionData(t *testing.T) {
	section := "Bridge"
	lines := []ParsedLine{{Text: "no midi data for this section at all", Section: &section}}
	sections := []MidiSection{
		{Section: "verse", Spans: []TimeSpan{{StartMS: 0, EndMS: 10000}}},
	}
	out, _ := Solve(SolveInput{Lines: lines, MidiSections: sections, Preset: PresetMedium})
	if out[0].DurationMS == 0 {
		t.Errorf("expected preset-weighted fallback duration, got 0")
	}
}

func TestSolveMidiWeightedOnlyRescalesWhenMatchTargetRequested(t *testing.T) {
	section := "Verse"
	lines := []ParsedLine{
		{Text: "a line of about medium length", Section: &section},
		{Text: "another line of similar length", Section: &section},
	}
	sections := []MidiSection{
		{Section: "verse", Spans: []TimeSpan{{StartMS: 0, EndMS: 10000}}},
	}
	target := u64(20000)

	unscaled, _ := Solve(SolveInput{Lines: lines, MidiSections: sections, TargetMS: target, MatchTarget: false})
	var unscaledSum uint64
	for _, d := range unscaled {
		unscaledSum += d.DurationMS
	}
	if unscaledSum > 10000 {
		t.Errorf("expected informational-only target to leave durations unrescaled, got sum %d", unscaledSum)
	}

	scaled, _ := Solve(SolveInput{Lines: lines, MidiSections: sections, TargetMS: target, MatchTarget: true})
	var scaledSum uint64
	for _, d := range scaled {
		scaledSum += d.DurationMS
	}
	if scaledSum < 18000 {
		t.Errorf("expected MatchTarget rescale to bring sum close to 20000, got %d", scaledSum)
	}
}

func TestClampMS(t *testing.T) {
	if clampMS(500, 1000, 8000) != 1000 {
		t.Errorf("expected clamp to min")
	}
	if clampMS(9000, 1000, 8000) != 8000 {
		t.Errorf("expected clamp to max")
	}
	if clampMS(4000, 1000, 8000) != 4000 {
		t.Errorf("expected passthrough within range")
	}
}

func TestLineWeightSectionMarker(t *testing.T) {
	w := lineWeight(ParsedLine{IsSectionMarker: true})
	if w != 0.3 {
		t.Errorf("expected section-marker weight 0.3, got %f", w)
	}
}

func TestLineWeightChorusBoost(t *testing.T) {
	section := "Chorus"
	w := lineWeight(ParsedLine{Text: "medium length line here", Section: &section})
	if w <= 1.0 {
		t.Errorf("expected chorus weight boost, got %f", w)
	}
}
