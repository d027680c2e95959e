package storyboard

import (
	"regexp"
	"strconv"
	"strings"
)

// LyricFormat is the detected shape of a raw lyric input.
type LyricFormat string

const (
	FormatTimestamped LyricFormat = "timestamped"
	FormatStructured  LyricFormat = "structured"
	FormatPlain       LyricFormat = "plain"
)

// timestampLinePattern matches a "[mm:ss(.mmm)]..." prefix, generalizing the
// teacher's lrc-style bracket-timestamp convention (see also
// other_examples' llehouerou-waves lrc.go timestampRe) to the spec's
// mm:ss(.mmm) grammar.
var timestampLinePattern = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})(\.\d{1,3})?\]`)

// structuredHeaderPattern matches a "# Section" structured-format header.
var structuredHeaderPattern = regexp.MustCompile(`^#\s+.+`)

// sectionMarkerPattern matches a bracketed section label like [Verse 1],
// [Chorus], [Bridge], [Intro], [Outro]. [Instrumental] is excluded: it is a
// real scene, never a section marker (spec.md §3).
var sectionMarkerPattern = regexp.MustCompile(`(?i)^\[\s*(verse(?:\s*\d+)?|chorus(?:\s*\d+)?|bridge(?:\s*\d+)?|intro|outro)\s*\]$`)

// instrumentalMarkerPattern recognizes the literal "[Instrumental]" line.
var instrumentalMarkerPattern = regexp.MustCompile(`(?i)^\[\s*instrumental\s*\]$`)

// explicitDurationPattern matches a [Xs] explicit per-line duration,
// anywhere in the line, e.g. "[3.5s]" or "[10s]".
var explicitDurationPattern = regexp.MustCompile(`\[(\d+(?:\.\d+)?)s\]`)

// DetectFormat classifies raw lyric text as timestamped, structured, or
// plain by inspecting the first 20 non-empty lines (spec.md §4.2).
func DetectFormat(text string) LyricFormat {
	lines := nonEmptyLines(text)
	sample := lines
	if len(sample) > 20 {
		sample = sample[:20]
	}
	if len(sample) == 0 {
		return FormatPlain
	}

	var timestamped, structured int
	for _, l := range sample {
		if timestampLinePattern.MatchString(l) {
			timestamped++
		}
		if structuredHeaderPattern.MatchString(l) {
			structured++
		}
	}

	total := len(sample)
	if float64(timestamped) > 0.3*float64(total) {
		return FormatTimestamped
	}
	if structured > 0 {
		return FormatStructured
	}
	return FormatPlain
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// parseLinesForFormat runs the format-specific line parser and then applies
// the shared tag-stripping pass (C1) to every emitted line's text.
func parseLinesForFormat(text string, format LyricFormat) ([]ParsedLine, []Diagnostic) {
	var parsed []ParsedLine
	var diags []Diagnostic

	rawLines := strings.Split(text, "\n")

	switch format {
	case FormatTimestamped:
		var lastTimestamp *uint64
		lineNo := uint32(0)
		for _, raw := range rawLines {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			lineNo++
			line := raw
			var ts *uint64
			if m := timestampLinePattern.FindStringSubmatchIndex(line); m != nil {
				ms, ok := parseBracketTimestamp(line[m[0]:m[1]])
				if ok {
					ts = &ms
					lastTimestamp = &ms
				}
				line = line[m[1]:]
			} else if lastTimestamp != nil {
				ts = lastTimestamp
			}
			pl, d := buildParsedLine(lineNo, line, ts)
			diags = append(diags, d...)
			if pl != nil {
				parsed = append(parsed, *pl)
			}
		}

	case FormatStructured:
		var currentSection *string
		lineNo := uint32(0)
		for _, raw := range rawLines {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			lineNo++
			trimmed := strings.TrimSpace(raw)
			if structuredHeaderPattern.MatchString(trimmed) {
				section := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
				currentSection = &section
				continue
			}
			pl, d := buildParsedLine(lineNo, raw, nil)
			diags = append(diags, d...)
			if pl != nil {
				pl.Section = currentSection
				parsed = append(parsed, *pl)
			}
		}

	default: // FormatPlain
		lineNo := uint32(0)
		for _, raw := range rawLines {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			lineNo++
			pl, d := buildParsedLine(lineNo, raw, nil)
			diags = append(diags, d...)
			if pl != nil {
				parsed = append(parsed, *pl)
			}
		}
	}

	return parsed, diags
}

// buildParsedLine strips tags, extracts an explicit duration, and detects
// section-marker / instrumental placeholders for one raw line.
func buildParsedLine(lineNo uint32, raw string, timestampMS *uint64) (*ParsedLine, []Diagnostic) {
	trimmed := strings.TrimSpace(raw)

	if sectionMarkerPattern.MatchString(trimmed) && !instrumentalMarkerPattern.MatchString(trimmed) {
		section := extractBracketLabel(trimmed)
		return &ParsedLine{
			Text:            "",
			Section:         &section,
			LineNumber:      lineNo,
			IsSectionMarker: true,
		}, nil
	}

	var explicitDur *uint32
	workingLine := raw
	if m := explicitDurationPattern.FindStringSubmatchIndex(workingLine); m != nil {
		secStr := workingLine[m[2]:m[3]]
		if secs, err := strconv.ParseFloat(secStr, 64); err == nil {
			ms := uint32(secs * 1000)
			explicitDur = &ms
		}
		workingLine = workingLine[:m[0]] + workingLine[m[1]:]
	}

	text, tags, diags := ParseTags(lineNo, workingLine)
	text = strings.TrimSpace(text)

	// A {time:...} tag, if present and valid, overrides/sets the timestamp.
	for _, t := range tags {
		if t.Kind != TagTime {
			continue
		}
		if ms, ok := parseTimeTagValue(t.Value); ok {
			timestampMS = &ms
		}
	}

	return &ParsedLine{
		Text:               text,
		TimestampMS:        timestampMS,
		Tags:               tags,
		LineNumber:         lineNo,
		ExplicitDurationMS: explicitDur,
	}, diags
}

func extractBracketLabel(trimmed string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
	return strings.TrimSpace(inner)
}

// parseBracketTimestamp parses "[mm:ss(.mmm)]" into milliseconds.
func parseBracketTimestamp(bracket string) (uint64, bool) {
	m := timestampLinePattern.FindStringSubmatch(bracket)
	if m == nil {
		return 0, false
	}
	mins, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	secs, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	var ms int
	if m[3] != "" {
		frac := strings.TrimPrefix(m[3], ".")
		for len(frac) < 3 {
			frac += "0"
		}
		if len(frac) > 3 {
			frac = frac[:3]
		}
		ms, _ = strconv.Atoi(frac)
	}
	return uint64(mins)*60000 + uint64(secs)*1000 + uint64(ms), true
}
