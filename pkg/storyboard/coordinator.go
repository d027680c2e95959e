package storyboard

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// AutoLinkMode selects one of the two mutually-exclusive reference-image
// auto-link policies applied by attachReferences (spec.md §4.9). Modeling
// this as a closed enum, rather than two independent booleans, is what
// makes the policies structurally mutually exclusive — there is no state
// that enables both at once.
type AutoLinkMode int

const (
	// AutoLinkNone attaches no reference images automatically.
	AutoLinkNone AutoLinkMode = iota
	// AutoLinkReferenceSlot copies the previous scene's end frame
	// into the next scene's reference-image slot 0.
	AutoLinkReferenceSlot
	// AutoLinkStartFrame copies the previous scene's end frame into
	// the next scene's start-frame slot.
	AutoLinkStartFrame
)

// BuildInput bundles every input build_storyboard may consume.
type BuildInput struct {
	RawText         string
	WordTimestamps  []WordTiming // pre-aligned; optional
	MidiTiming      *MidiTimingRef
	TargetMS        *uint64
	Preset          PacingPreset
	MatchTarget     bool
	AudioDurationMS *uint64
	Style           string
	AutoLinkMode    AutoLinkMode
	GapThresholdMS  uint64 // 0 means DefaultGapThresholdMS

	LLM LineDurationEstimator // injected C5 capability, may be nil
}

// BuildError wraps ErrCancelled for the one coordinator-level error kind
// that is not already one of the component error types (§7).
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "storyboard build: " + e.Reason }
func (e *BuildError) Unwrap() error { return ErrCancelled }

// Build orchestrates C1-C7 in one pass (spec.md §4.9's build_storyboard).
// ctx is checked between stages: after C3 (timing solve), after C6 (gap
// fill), and between C7-split and C7-batch; cancellation returns a
// *BuildError wrapping ErrCancelled. ctx is not passed into Solve, so a
// running LineDurationEstimator call does not observe it.
func Build(ctx context.Context, in BuildInput) (*Storyboard, []Diagnostic, error) {
	if strings.TrimSpace(in.RawText) == "" {
		return nil, nil, &InputError{Message: "empty lyrics"}
	}

	lines, diags := ParseLines(in.RawText)

	solveIn := SolveInput{
		Lines:       lines,
		TargetMS:    in.TargetMS,
		Preset:      in.Preset,
		MatchTarget: in.MatchTarget,
		LLM:         in.LLM,
	}
	if in.MidiTiming != nil {
		solveIn.MidiSections = in.MidiTiming.Sections
	}

	durations, solveDiags := Solve(solveIn)
	diags = append(diags, solveDiags...)

	timed := zipTimedLyrics(lines, durations)
	synthetic := make([]bool, len(timed))

	if err := checkCancelled(ctx); err != nil {
		return nil, diags, err
	}

	if in.AudioDurationMS != nil {
		gap := in.GapThresholdMS
		timed, synthetic = FillGapsIndexed(timed, *in.AudioDurationMS, gap)
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, diags, err
	}

	scenes0 := makeScenes(timed, synthetic, durations, in.Style)

	scenes1 := Split(scenes0)

	if err := checkCancelled(ctx); err != nil {
		return nil, diags, err
	}

	scenes2 := Batch(scenes1)

	attachReferences(scenes2, in.AutoLinkMode)

	if err := validateInvariants(scenes2); err != nil {
		return nil, diags, err
	}

	var total uint64
	for _, sc := range scenes2 {
		if sc.Span.EndMS > total {
			total = sc.Span.EndMS
		}
	}

	sb := &Storyboard{Scenes: scenes2, TotalDurationMS: total}
	if in.MidiTiming != nil {
		sb.MIDI = in.MidiTiming
		if in.MidiTiming.TempoBPM > 0 {
			bpm := in.MidiTiming.TempoBPM
			sb.TempoBPM = &bpm
		}
	}
	return sb, diags, nil
}

func checkCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return &BuildError{Reason: "cancelled"}
	default:
		return nil
	}
}

// zipTimedLyrics pairs each non-section-marker line with its solved
// duration; section markers are carried through with their own (weighted)
// duration so later stages can route them like any other TimedLyric.
func zipTimedLyrics(lines []ParsedLine, durations []LineDuration) []TimedLyric {
	out := make([]TimedLyric, 0, len(lines))
	var cursor uint64
	for i, l := range lines {
		d := durations[i].DurationMS
		span := TimeSpan{StartMS: cursor, EndMS: cursor + d}
		if l.TimestampMS != nil {
			span = TimeSpan{StartMS: *l.TimestampMS, EndMS: *l.TimestampMS + d}
		}
		out = append(out, TimedLyric{Text: l.Text, Span: span, Section: l.Section})
		cursor = span.EndMS
	}
	return out
}

// makeScenes lifts TimedLyrics into Scenes, applying the style prefix to
// every prompt that is not a section marker (instrumentals included). synthetic marks entries
// inserted by the gap filler (never consume a duration flag for those);
// durations carries the original per-line HasExplicitTiming/LLMTimingUsed
// flags in lockstep with the non-synthetic entries of timed.
func makeScenes(timed []TimedLyric, synthetic []bool, durations []LineDuration, style string) []Scene {
	out := make([]Scene, len(timed))
	flagIdx := 0
	for i, t := range timed {
		isInstrumental := t.Text == "[Instrumental]"
		isMarker := t.Text == "" && !isInstrumental

		var hasExplicit, llmUsed bool
		if i < len(synthetic) && synthetic[i] {
			isInstrumental = true
		} else if flagIdx < len(durations) {
			hasExplicit = durations[flagIdx].HasExplicitTiming
			llmUsed = durations[flagIdx].LLMTimingUsed
			flagIdx++
		}

		sc := Scene{
			ID:         uuid.New(),
			Order:      uint32(i),
			Source:     t.Text,
			Prompt:     t.Text,
			Span:       t.Span,
			DurationMS: uint32(t.Span.DurationMS()),
			Metadata: SceneMetadata{
				Section:           t.Section,
				IsInstrumental:    isInstrumental,
				HasExplicitTiming: hasExplicit,
				LLMTimingUsed:     llmUsed,
			},
		}
		if !isMarker {
			sc.Prompt = applyStylePrefix(t.Text, style, isMarker)
		}
		out[i] = sc
	}
	return out
}

// applyStylePrefix prepends "<style> style: " to a prompt unless the prompt
// already begins with the style token (case-insensitive) or the scene is a
// section marker (spec.md §4.9). This single call site is what prevents
// double-prefixing on an LLM-enhanced re-pass: there is nowhere else in the
// pipeline a prefix could be applied twice.
func applyStylePrefix(prompt, style string, isSectionMarker bool) string {
	style = strings.TrimSpace(style)
	if style == "" || isSectionMarker {
		return prompt
	}
	if strings.HasPrefix(strings.ToLower(prompt), strings.ToLower(style)) {
		return prompt
	}
	return style + " style: " + prompt
}

// attachReferences implements the two mutually-exclusive auto-link
// policies (spec.md §4.9). Scene 0 is never a target: there is no
// preceding scene to link from.
func attachReferences(scenes []Scene, mode AutoLinkMode) {
	if mode == AutoLinkNone {
		return
	}
	for i := 1; i < len(scenes); i++ {
		prev := scenes[i-1]
		if prev.EndFrame == nil {
			continue
		}
		link := ReferenceLink{Path: prev.EndFrame.Path, AutoLinked: true}
		switch mode {
		case AutoLinkReferenceSlot:
			link.Kind = RefKindReference
			scenes[i].ReferenceImages[0] = &link
		case AutoLinkStartFrame:
			link.Kind = RefKindStartFrame
			scenes[i].StartFrame = &link
		}
	}
}

// validateInvariants re-checks the §3 invariants the Coordinator is
// responsible for upholding before returning a Storyboard. Any violation is
// the Coordinator's own bug, never the caller's.
func validateInvariants(scenes []Scene) error {
	for i, sc := range scenes {
		if sc.Order != uint32(i) {
			return &InvariantViolation{Reason: "scene order is not dense"}
		}
		if i > 0 && sc.Span.StartMS < scenes[i-1].Span.StartMS {
			return &InvariantViolation{Reason: "scene spans are not non-decreasing"}
		}
		if sc.Metadata.BatchedCount > 1 {
			lt := sc.Metadata.LyricTimings
			if len(lt) == 0 {
				return &InvariantViolation{Reason: "batched scene missing lyric_timings"}
			}
			if lt[0].Span.StartMS != 0 || lt[len(lt)-1].Span.EndMS != sc.Span.DurationMS() {
				return &InvariantViolation{Reason: "lyric_timings does not span the batched scene"}
			}
		}
	}
	return nil
}
