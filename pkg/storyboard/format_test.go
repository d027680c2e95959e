package storyboard

import "testing"

func TestDetectFormatTimestamped(t *testing.T) {
	text := "[0:00] A\n[0:03] B\n[0:07] C"
	if got := DetectFormat(text); got != FormatTimestamped {
		t.Fatalf("expected timestamped, got %s", got)
	}
}

func TestDetectFormatStructured(t *testing.T) {
	text := "# Verse 1\nline one\nline two\n# Chorus\nline three"
	if got := DetectFormat(text); got != FormatStructured {
		t.Fatalf("expected structured, got %s", got)
	}
}

func TestDetectFormatPlain(t *testing.T) {
	text := "just a plain line\nanother plain line"
	if got := DetectFormat(text); got != FormatPlain {
		t.Fatalf("expected plain, got %s", got)
	}
}

func TestParseLinesTimestamped(t *testing.T) {
	lines, _ := ParseLines("[0:00] A\n[0:03] B\n[0:07] C")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	want := []uint64{0, 3000, 7000}
	for i, l := range lines {
		if l.TimestampMS == nil || *l.TimestampMS != want[i] {
			t.Errorf("line %d: want timestamp %d, got %v", i, want[i], l.TimestampMS)
		}
	}
}

func TestParseLinesStructuredSectionAttribution(t *testing.T) {
	lines, _ := ParseLines("# Verse 1\nline one\n# Chorus\nline two")
	if len(lines) != 2 {
		t.Fatalf("expected 2 emitted lines, got %d", len(lines))
	}
	if lines[0].Section == nil || *lines[0].Section != "Verse 1" {
		t.Fatalf("expected section Verse 1, got %v", lines[0].Section)
	}
	if lines[1].Section == nil || *lines[1].Section != "Chorus" {
		t.Fatalf("expected section Chorus, got %v", lines[1].Section)
	}
}

func TestParseLinesPlainSectionMarkerPlaceholder(t *testing.T) {
	lines, _ := ParseLines("[Verse 1]\nfirst lyric\n[Instrumental]\nsecond lyric")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !lines[0].IsSectionMarker {
		t.Fatalf("expected [Verse 1] to be a section marker")
	}
	if lines[2].IsSectionMarker {
		t.Fatalf("[Instrumental] must never be a section marker")
	}
}

func TestExplicitDurationExtraction(t *testing.T) {
	lines, _ := ParseLines("[3.5s] hello there")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].ExplicitDurationMS == nil || *lines[0].ExplicitDurationMS != 3500 {
		t.Fatalf("expected explicit duration 3500ms, got %v", lines[0].ExplicitDurationMS)
	}
	if lines[0].Text != "hello there" {
		t.Fatalf("expected duration tag stripped from text, got %q", lines[0].Text)
	}
}
