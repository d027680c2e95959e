package suno

import "testing"

func TestMergeAudioRejectsEmptySelection(t *testing.T) {
	err := MergeAudio(map[StemName]string{}, "out.wav", "")
	ame, ok := err.(*AudioMergeError)
	if !ok || ame.Kind != "no_stems_selected" {
		t.Fatalf("expected no_stems_selected AudioMergeError, got %T (%v)", err, err)
	}
}

func TestExcerptTruncatesFromTheEnd(t *testing.T) {
	out := excerpt([]byte("0123456789"), 4)
	if out != "6789" {
		t.Fatalf("expected trailing 4 bytes, got %q", out)
	}
}

func TestExcerptPassesThroughShortInput(t *testing.T) {
	out := excerpt([]byte("short"), 40)
	if out != "short" {
		t.Fatalf("expected input returned unchanged, got %q", out)
	}
}
