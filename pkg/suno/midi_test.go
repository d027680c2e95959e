package suno

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestPatchKeySignaturesClampsOutOfRangeSharps(t *testing.T) {
	raw := []byte{0x00, 0xFF, keySigMetaID, 0x02, 19, 2, 0x00}
	out := patchKeySignatures(raw)
	if out[4] != 7 {
		t.Fatalf("expected sharps clamped to 7, got %d", out[4])
	}
	if out[5] != 0 {
		t.Fatalf("expected invalid mode clamped to 0, got %d", out[5])
	}
}

func TestPatchKeySignaturesLeavesValidEventsUntouched(t *testing.T) {
	raw := []byte{0x00, 0xFF, keySigMetaID, 0x02, 0xFB, 0x01, 0x00} // sf=-5, mi=1
	out := patchKeySignatures(raw)
	if int8(out[4]) != -5 || out[5] != 1 {
		t.Fatalf("expected valid key signature left alone, got sf=%d mi=%d", int8(out[4]), out[5])
	}
}

func buildTestSMF(t *testing.T, trackName string, withKeySig bool) *smf.SMF {
	t.Helper()
	out := smf.NewSMF1()

	track0 := smf.Track{}
	track0 = append(track0, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTempo(120.0))})
	track0 = append(track0, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTimeSig(4, 4, 24, 8))})
	if withKeySig {
		track0 = append(track0, smf.Event{Delta: 0, Message: smf.Message(smf.MetaKeySig(19, false))})
	}
	track0 = append(track0, smf.Event{Delta: 0, Message: smf.EOT})
	out.Add(track0)

	track1 := smf.Track{}
	track1 = append(track1, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(trackName))})
	track1 = append(track1, smf.Event{Delta: 0, Message: smf.Message(midi.NoteOn(0, 60, 100))})
	track1 = append(track1, smf.Event{Delta: 480, Message: smf.Message(midi.NoteOff(0, 60))})
	track1 = append(track1, smf.Event{Delta: 0, Message: smf.EOT})
	out.Add(track1)

	return out
}

func writeSMFToTemp(t *testing.T, s *smf.SMF, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create midi file: %v", err)
	}
	defer f.Close()
	if _, err := s.WriteTo(f); err != nil {
		t.Fatalf("write midi file: %v", err)
	}
	return path
}

func TestReadSMFPermissiveToleratesInvalidKeySignature(t *testing.T) {
	s := buildTestSMF(t, "Vocals", true)
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write to buffer: %v", err)
	}

	_, err := readSMFPermissive(&buf)
	if err != nil {
		t.Fatalf("expected permissive read to succeed, got %v", err)
	}
}

func TestMergeMidiProducesOneTrackPerStemWithTempoMap(t *testing.T) {
	vocalsPath := writeSMFToTemp(t, buildTestSMF(t, "Vocals", true), "vocals.mid")
	drumsPath := writeSMFToTemp(t, buildTestSMF(t, "Drums", false), "drums.mid")

	merged, err := MergeMidi(map[StemName]string{
		StemVocals: vocalsPath,
		StemDrums:  drumsPath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(merged.Tracks) != 3 {
		t.Fatalf("expected tempo track + 2 stem tracks, got %d", len(merged.Tracks))
	}
	for _, ev := range merged.Tracks[0] {
		if ev.Message.Type() == smf.MetaKeySigMsg {
			t.Errorf("expected key signature to never be copied into merged tempo track")
		}
	}
}

func TestMergeMidiRejectsEmptySelection(t *testing.T) {
	_, err := MergeMidi(map[StemName]string{})
	if _, ok := err.(*MidiError); !ok {
		t.Fatalf("expected *MidiError, got %T (%v)", err, err)
	}
}
