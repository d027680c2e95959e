// Package storyboard turns a song's lyrics, audio, and MIDI timing into a
// fully-timed sequence of video scenes (a storyboard). It combines a
// tagged-lyric parser, a multi-strategy timing solver, a Whisper-alignment
// stage, an instrumental gap filler, and a scene splitter/batcher that
// enforces an 8-second clip ceiling. The package is host-agnostic: it never
// touches a database, the network, or a filesystem path on its own — all of
// that belongs to the caller.
package storyboard

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TimeSpan is a half-open interval in milliseconds, start inclusive.
type TimeSpan struct {
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
}

// DurationMS returns the span's length.
func (s TimeSpan) DurationMS() uint64 {
	if s.EndMS <= s.StartMS {
		return 0
	}
	return s.EndMS - s.StartMS
}

// Valid reports whether the span respects StartMS < EndMS.
func (s TimeSpan) Valid() bool {
	return s.StartMS < s.EndMS
}

// TagKind is the closed set of recognized inline tag kinds.
type TagKind string

const (
	TagScene      TagKind = "scene"
	TagCamera     TagKind = "camera"
	TagMood       TagKind = "mood"
	TagFocus      TagKind = "focus"
	TagTransition TagKind = "transition"
	TagStyle      TagKind = "style"
	TagTempo      TagKind = "tempo"
	TagTime       TagKind = "time"
	TagLipsync    TagKind = "lipsync"
)

// Tag is an inline {kind:value} or {kind} annotation found on a lyric line.
type Tag struct {
	Kind       TagKind
	Value      string
	LineIndex  uint32
	CharOffset uint32
	// Recognized is false when Kind fell outside the closed TagKind set;
	// such tags are still returned by ParseTags, and each one also yields
	// a Diagnostic.
	Recognized bool
}

// ParsedLine is one line of lyric input after tag extraction.
type ParsedLine struct {
	Text        string
	TimestampMS *uint64
	Section     *string
	Tags        []Tag
	LineNumber  uint32

	// ExplicitDurationMS carries a [Xs] sidecar duration extracted by the
	// line parser (C2), independent of the tag grammar (C1).
	ExplicitDurationMS *uint32

	// IsSectionMarker is true for bracketed section-label placeholder
	// lines ([Verse 1], [Chorus], ...). [Instrumental] is never a section
	// marker — it is a real scene and IsSectionMarker is false for it.
	IsSectionMarker bool
}

// WordTiming is a single transcribed word with its time span.
type WordTiming struct {
	Text       string
	Span       TimeSpan
	Confidence float32
}

// TranscriptionResult is the output of an external speech-to-text
// transcriber (e.g. Whisper); the core only ever consumes one.
type TranscriptionResult struct {
	FullText   string
	Words      []WordTiming // sorted by Span.StartMS
	Language   string
	DurationMS uint64
	Model      string
}

// AlignmentResult is the output of aligning provided lyric text against an
// extracted (transcribed) word list.
type AlignmentResult struct {
	Matched            []WordTiming
	UnmatchedProvided  []string
	UnmatchedExtracted []string
	Similarity         float32 // in [0,1]; >= 0.7 is considered a good match
	AlignedText        string
}

// GoodMatch reports whether the alignment similarity clears the
// informational "good match" bar spec'd at 0.7.
func (a AlignmentResult) GoodMatch() bool {
	return a.Similarity >= 0.7
}

// TimedLyric is a lyric line (or the literal "[Instrumental]") with a
// resolved time span, produced by the timing solver / gap filler and
// consumed by the splitter and batcher.
type TimedLyric struct {
	Text    string
	Span    TimeSpan
	Section *string
}

// StemName is the closed set of recognized Suno stem names.
type StemName string

const (
	StemVocals        StemName = "Vocals"
	StemDrums         StemName = "Drums"
	StemBass          StemName = "Bass"
	StemGuitar        StemName = "Guitar"
	StemSynth         StemName = "Synth"
	StemPiano         StemName = "Piano"
	StemStrings       StemName = "Strings"
	StemBrass         StemName = "Brass"
	StemFX            StemName = "FX"
	StemBackingVocals StemName = "Backing Vocals"
	StemLead          StemName = "Lead"
	StemRhythm        StemName = "Rhythm"
	StemPercussion    StemName = "Percussion"
	StemKeys          StemName = "Keys"
)

// RecognizedStemNames is the closed set in §3, used for case-insensitive
// filename matching by the Suno preprocessor.
var RecognizedStemNames = []StemName{
	StemVocals, StemDrums, StemBass, StemGuitar, StemSynth, StemPiano,
	StemStrings, StemBrass, StemFX, StemBackingVocals, StemLead, StemRhythm,
	StemPercussion, StemKeys,
}

// RefKind distinguishes the kind of reference image relationship a Scene
// carries a path for.
type RefKind string

const (
	RefKindStartFrame RefKind = "start_frame"
	RefKindEndFrame   RefKind = "end_frame"
	RefKindReference  RefKind = "reference"
)

// ReferenceLink / FrameRef relate a Scene to an image artifact by path only;
// the core never generates or inspects pixels.
type ReferenceLink struct {
	Path       string  `json:"path"`
	AutoLinked bool    `json:"auto_linked"`
	Kind       RefKind `json:"kind"`
}

// FrameRef is an alias kept distinct from ReferenceLink for readability at
// call sites; it carries identical fields.
type FrameRef = ReferenceLink

// SplitPart records a scene's position within a group produced by the
// splitter (C7) when an over-long scene was broken into n parts.
type SplitPart struct {
	Index uint32 // 1-based
	Total uint32
}

// LyricTiming is one member's relative span inside a batched scene, stored
// in Scene.Metadata.LyricTimings.
type LyricTiming struct {
	Text string   `json:"text"`
	Span TimeSpan `json:"span"`
}

// SceneMetadata is the closed struct the spec requires in place of the
// teacher's string-keyed ad-hoc metadata bags.
type SceneMetadata struct {
	Section           *string       `json:"section,omitempty"`
	IsInstrumental    bool          `json:"is_instrumental"`
	HasExplicitTiming bool          `json:"has_explicit_timing"`
	LLMTimingUsed     bool          `json:"llm_timing_used"`
	BatchedCount      uint32        `json:"batched_count"`
	LyricTimings      []LyricTiming `json:"lyric_timings,omitempty"`
	SplitPart         *SplitPart    `json:"split_part,omitempty"`
	Wrapped           bool          `json:"wrapped"`
	ReferenceLinks    []ReferenceLink `json:"reference_links,omitempty"`
}

// Scene is the storyboard atom.
type Scene struct {
	ID          uuid.UUID
	Order       uint32
	Source      string
	Prompt      string
	Environment *string
	Span        TimeSpan
	DurationMS  uint32
	Metadata    SceneMetadata

	StartFrame *FrameRef
	EndFrame   *FrameRef
	// ReferenceImages always has exactly 3 slots, any of which may be nil.
	ReferenceImages [3]*ReferenceLink
}

// AudioTrackRef / MidiTimingRef are opaque handles the host attaches to a
// built Storyboard; the core never reads through them itself except where
// §4 names an explicit MIDI-section or audio-duration input.
type AudioTrackRef struct {
	Path       string
	DurationMS uint64
}

// MidiSection maps a section label to the list of time ranges (in ms) the
// MIDI file assigns to it, consumed by the MIDI-section-weighted strategy.
type MidiSection struct {
	Section string
	Spans   []TimeSpan
}

type MidiTimingRef struct {
	Path       string
	TempoBPM   float32
	Sections   []MidiSection
}

// Storyboard is the final, fully-timed output of Build.
type Storyboard struct {
	Scenes          []Scene
	TotalDurationMS uint64
	TempoBPM        *float32
	Audio           *AudioTrackRef
	MIDI            *MidiTimingRef
}

// Summary returns a short, log-friendly description of the storyboard,
// in the spirit of the teacher's per-domain-value Summary()/GetSectionSummary()
// helpers.
func (sb Storyboard) Summary() string {
	instrumental := 0
	batched := 0
	for _, sc := range sb.Scenes {
		if sc.Metadata.IsInstrumental {
			instrumental++
		}
		if sc.Metadata.BatchedCount > 1 {
			batched++
		}
	}
	return fmt.Sprintf(
		"%d scenes (%d instrumental, %d batched), total %.1fs",
		len(sb.Scenes), instrumental, batched, float64(sb.TotalDurationMS)/1000.0,
	)
}

// Diagnostic is a non-fatal parse/build note, localized to a line when
// possible.
type Diagnostic struct {
	LineNumber uint32
	Message    string
}

// Error kinds (§7). These are sentinel-comparable via errors.Is through the
// wrapping helpers below.
var (
	ErrInput              = errors.New("storyboard: input error")
	ErrLLMUnparseable     = errors.New("storyboard: llm response unparseable")
	ErrLLMLineCountMismatch = errors.New("storyboard: llm line count mismatch")
	ErrLLMTimeout         = errors.New("storyboard: llm timeout")
	ErrLLMTransport       = errors.New("storyboard: llm transport error")
	ErrInvariantViolation = errors.New("storyboard: invariant violation")
	ErrCancelled          = errors.New("storyboard: build cancelled")
)

// InputError wraps ErrInput with a line number, per §7.
type InputError struct {
	LineNumber uint32
	Message    string
}

func (e *InputError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("input error at line %d: %s", e.LineNumber, e.Message)
	}
	return fmt.Sprintf("input error: %s", e.Message)
}

func (e *InputError) Unwrap() error { return ErrInput }

// LlmSyncError is the C5 error taxonomy: Unparseable, LineCountMismatch,
// Timeout, Transport.
type LlmSyncError struct {
	Kind     string // "unparseable" | "line_count_mismatch" | "timeout" | "transport"
	Excerpt  string
	Expected int
	Got      int
	Inner    error
}

func (e *LlmSyncError) Error() string {
	switch e.Kind {
	case "unparseable":
		return fmt.Sprintf("llm sync: unparseable response: %s", e.Excerpt)
	case "line_count_mismatch":
		return fmt.Sprintf("llm sync: line count mismatch: expected %d got %d", e.Expected, e.Got)
	case "timeout":
		return "llm sync: timeout"
	case "transport":
		return fmt.Sprintf("llm sync: transport error: %v", e.Inner)
	default:
		return "llm sync: error"
	}
}

func (e *LlmSyncError) Unwrap() error {
	switch e.Kind {
	case "unparseable":
		return ErrLLMUnparseable
	case "line_count_mismatch":
		return ErrLLMLineCountMismatch
	case "timeout":
		return ErrLLMTimeout
	default:
		return ErrLLMTransport
	}
}

// InvariantViolation signals a bug: the core refuses to emit a Storyboard
// that would violate the §3 invariants.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("storyboard invariant violation: %s", e.Reason)
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariantViolation }
