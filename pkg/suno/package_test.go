package suno

import "testing"

func TestLinkedStemsIntersection(t *testing.T) {
	p := &Package{
		AudioStems: map[StemName]string{StemVocals: "v.wav", StemDrums: "d.wav", StemBass: "b.wav"},
		MidiFiles:  map[StemName]string{StemVocals: "v.mid", StemBass: "b.mid"},
	}
	got := p.LinkedStems()
	if len(got) != 2 || got[0] != StemBass || got[1] != StemVocals {
		t.Fatalf("expected [Bass Vocals], got %v", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := &Package{extractDir: t.TempDir()}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error on first close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestLookupRecognizedStemCaseInsensitive(t *testing.T) {
	s, ok := lookupRecognizedStem("vocals")
	if !ok || s != StemVocals {
		t.Fatalf("expected case-insensitive match to StemVocals, got %v, %v", s, ok)
	}
	if _, ok := lookupRecognizedStem("Kazoo"); ok {
		t.Fatalf("expected unrecognized stem name to fail lookup")
	}
}
