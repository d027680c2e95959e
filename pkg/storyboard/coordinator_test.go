package storyboard

import (
	"context"
	"testing"
)

func TestBuildScenarioAPlainLyricsPresetPacing(t *testing.T) {
	sb, _, err := Build(context.Background(), BuildInput{
		RawText: "Line one\nLine two",
		Preset:  PresetMedium,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sb.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(sb.Scenes))
	}
	if sb.Scenes[0].Order != 0 || sb.Scenes[1].Order != 1 {
		t.Fatalf("expected dense order [0,1]")
	}
	if sb.Scenes[0].Span != (TimeSpan{StartMS: 0, EndMS: 4000}) {
		t.Errorf("unexpected first span: %+v", sb.Scenes[0].Span)
	}
	if sb.Scenes[1].Span != (TimeSpan{StartMS: 4000, EndMS: 8000}) {
		t.Errorf("unexpected second span: %+v", sb.Scenes[1].Span)
	}
	if sb.TotalDurationMS != 8000 {
		t.Errorf("expected total duration 8000, got %d", sb.TotalDurationMS)
	}
}

func TestBuildScenarioBTimestamped(t *testing.T) {
	sb, _, err := Build(context.Background(), BuildInput{
		RawText: "[0:00] A\n[0:03] B\n[0:07] C",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sb.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(sb.Scenes))
	}
	wantStarts := []uint64{0, 3000, 7000}
	for i, s := range wantStarts {
		if sb.Scenes[i].Span.StartMS != s {
			t.Errorf("scene %d: expected start %d, got %d", i, s, sb.Scenes[i].Span.StartMS)
		}
	}
}

func TestBuildScenarioCExplicitDurationsWithSplit(t *testing.T) {
	target := uint64(20000)
	sb, _, err := Build(context.Background(), BuildInput{
		RawText:     "[3s] A\n[10s] B\n[2s] C",
		TargetMS:    &target,
		MatchTarget: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sb.Scenes) != 4 {
		t.Fatalf("expected 4 scenes after split (A, B1, B2, C), got %d", len(sb.Scenes))
	}
	for _, sc := range sb.Scenes {
		if !sc.Metadata.HasExplicitTiming {
			t.Errorf("expected every scene to carry has_explicit_timing, scene %+v", sc)
		}
		if sc.DurationMS > 8000 {
			t.Errorf("scene exceeds 8000ms ceiling: %d", sc.DurationMS)
		}
	}
}

func TestBuildScenarioEInstrumentalGap(t *testing.T) {
	audioDur := uint64(18000)
	sb, _, err := Build(context.Background(), BuildInput{
		RawText:         "[0:00] first lyric\n[0:14] second lyric",
		AudioDurationMS: &audioDur,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foundInstrumental := false
	for _, sc := range sb.Scenes {
		if sc.Metadata.IsInstrumental {
			foundInstrumental = true
		}
	}
	if !foundInstrumental {
		t.Errorf("expected an instrumental scene to be inserted")
	}
}

func TestBuildEmptyLyricsIsInputError(t *testing.T) {
	_, _, err := Build(context.Background(), BuildInput{RawText: "   "})
	if _, ok := err.(*InputError); !ok {
		t.Fatalf("expected *InputError, got %T (%v)", err, err)
	}
}

func TestBuildRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, BuildInput{RawText: "a lyric line"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestApplyStylePrefixAvoidsDoublePrefix(t *testing.T) {
	out := applyStylePrefix("Noir style: a dark alley", "Noir", false)
	if out != "Noir style: a dark alley" {
		t.Errorf("expected no double prefix, got %q", out)
	}
}

func TestApplyStylePrefixSkipsSectionMarkers(t *testing.T) {
	out := applyStylePrefix("", "Noir", true)
	if out != "" {
		t.Errorf("expected section marker prompt untouched, got %q", out)
	}
}

func TestAttachReferencesStartFrameMode(t *testing.T) {
	link := &ReferenceLink{Path: "frame1.png", Kind: RefKindEndFrame}
	scenes := []Scene{
		{Order: 0, EndFrame: link},
		{Order: 1},
	}
	attachReferences(scenes, AutoLinkStartFrame)
	if scenes[1].StartFrame == nil || scenes[1].StartFrame.Path != "frame1.png" {
		t.Errorf("expected scene 1 to receive auto-linked start frame, got %+v", scenes[1].StartFrame)
	}
	if scenes[0].StartFrame != nil {
		t.Errorf("scene 0 must never receive an auto-link")
	}
}
