package suno

import (
	"bytes"
	"io"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// keySigMetaID is the MIDI meta event status byte for a key signature
// (0xFF 0x59 0x02 sf mi), per the General MIDI spec.
const keySigMetaID = 0x59

// readSMFPermissive reads a Standard MIDI File the way smf.ReadFrom does,
// except it first clamps any key-signature meta event to a valid sharps/
// flats range. Suno's exported stems are observed to emit key signatures
// with sf values far outside [-7, 7] (e.g. 19 sharps), which a strict
// reader rejects outright; clamping to the nearest valid value keeps the
// rest of the file (tempo, note data) usable (spec.md §4.8).
//
// The original implementation installs its leniency once, process-wide, by
// monkey-patching mido's key-signature meta-spec registry before any file is
// read (core/video/suno_package.py's _register_permissive_midi_loader). The
// Go MIDI library this repo uses has no equivalent registry to patch into —
// smf.ReadFrom has no hook for a custom meta-event decoder — so there is no
// real global state to install here; the only faithful port is to clamp the
// bytes ahead of every read, which is what this function does on every call.
// A sync.Once guarding nothing would just be ceremony around that fact.
func readSMFPermissive(r io.Reader) (*smf.SMF, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &MidiError{Kind: "invalid_file"}
	}

	patched := patchKeySignatures(raw)

	data, err := smf.ReadFrom(bytes.NewReader(patched))
	if err != nil {
		return nil, &MidiError{Kind: "invalid_file"}
	}
	return data, nil
}

// patchKeySignatures scans raw SMF bytes for FF 59 02 sf mi meta events and
// clamps sf to [-7, 7] and mi to {0, 1} in place, leaving every other byte
// untouched. It is a best-effort byte-level sanitizer, not a full SMF
// parser: it patches every occurrence of the literal 3-byte marker
// FF 59 02 anywhere in the file, so the same byte run inside unrelated data
// (another event's payload, say) is patched too.
func patchKeySignatures(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)

	for i := 0; i+4 < len(out); i++ {
		if out[i] == 0xFF && out[i+1] == keySigMetaID && out[i+2] == 0x02 {
			sf := int8(out[i+3])
			if sf < -7 {
				sf = -7
			}
			if sf > 7 {
				sf = 7
			}
			out[i+3] = byte(sf)
			if out[i+4] != 0 && out[i+4] != 1 {
				out[i+4] = 0
			}
		}
	}
	return out
}

// MergeMidi builds one multi-track Standard MIDI File out of the MIDI stems
// selected from a Package. Track 0 carries only the tempo map copied from
// the first input file in alphabetical stem-name order, whether or not that
// file has tempo events (set_tempo and time_signature events;
// key_signature is deliberately never copied forward, since Suno's exports
// are the ones with invalid signatures in the first place). Every selected
// stem that has a note-bearing track becomes its own subsequent track, in
// alphabetical stem-name order, prefixed with a synthesized track_name meta
// event naming the stem; stems without one are skipped. This
// mirrors gm_export.go's GeneralMidiExporter: a tempo track built by
// extractTempoTrack, followed by one track per part (spec.md §4.8).
func MergeMidi(stemPaths map[StemName]string) (*smf.SMF, error) {
	if len(stemPaths) == 0 {
		return nil, &MidiError{Kind: "no_note_tracks"}
	}

	stems := make([]StemName, 0, len(stemPaths))
	for s := range stemPaths {
		stems = append(stems, s)
	}
	sort.Slice(stems, func(i, j int) bool { return stems[i] < stems[j] })

	out := smf.NewSMF1()
	var tempoCopied bool
	var noteTrackCount int

	for _, stem := range stems {
		path := stemPaths[stem]
		f, err := os.Open(path)
		if err != nil {
			return nil, &MidiError{Kind: "invalid_file"}
		}
		src, err := readSMFPermissive(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		if !tempoCopied {
			out.TimeFormat = src.TimeFormat
			out.Add(extractTempoTrack(src))
			tempoCopied = true
		}

		track := extractStemTrack(src, string(stem))
		if track != nil {
			out.Add(track)
			noteTrackCount++
		}
	}

	if noteTrackCount == 0 {
		return nil, &MidiError{Kind: "no_note_tracks"}
	}
	return out, nil
}

// extractTempoTrack copies only set_tempo and time_signature meta events
// out of a source file's first track, exactly like gm_export.go's function
// of the same purpose, minus key_signature: this preprocessor's whole
// reason for existing is that those signatures can't be trusted.
func extractTempoTrack(src *smf.SMF) smf.Track {
	tempo := smf.Track{}
	if len(src.Tracks) == 0 {
		tempo = append(tempo, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTempo(120.0))})
		tempo = append(tempo, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTimeSig(4, 4, 24, 8))})
		tempo = append(tempo, smf.Event{Delta: 0, Message: smf.EOT})
		return tempo
	}

	for _, ev := range src.Tracks[0] {
		switch ev.Message.Type() {
		case smf.MetaTempoMsg, smf.MetaTimeSigMsg:
			tempo = append(tempo, ev)
		}
	}
	tempo = append(tempo, smf.Event{Delta: 0, Message: smf.EOT})
	return tempo
}

// extractStemTrack finds the first note-bearing track in src and returns a
// copy prefixed with a track_name meta event naming the stem. Returns nil
// if src has no note-bearing track at all.
func extractStemTrack(src *smf.SMF, name string) smf.Track {
	for _, t := range src.Tracks {
		if !hasNoteEvent(t) {
			continue
		}
		out := smf.Track{}
		out = append(out, smf.Event{Delta: 0, Message: smf.Message(smf.MetaTrackSequenceName(name))})
		for _, ev := range t {
			if ev.Message.Type() == smf.MetaTrackNameMsg || ev.Message.Type() == smf.MetaKeySigMsg {
				continue
			}
			out = append(out, ev)
		}
		return out
	}
	return nil
}

func hasNoteEvent(t smf.Track) bool {
	var ch, note, vel uint8
	for _, ev := range t {
		if ev.Message.GetNoteOn(&ch, &note, &vel) || ev.Message.GetNoteOff(&ch, &note, &vel) {
			return true
		}
	}
	return false
}
