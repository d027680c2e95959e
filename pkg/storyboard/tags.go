package storyboard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tagPattern matches {kind} or {kind:value}. Kind is [a-zA-Z_-]+; value is
// any run of non-'}' characters. Matching is single-pass and line-oriented,
// in the same regexp-driven style as the teacher's section-marker patterns
// (pkg/lyrics/parser.go's versePattern/chorusPattern family).
var tagPattern = regexp.MustCompile(`\{([a-zA-Z_-]+)(?::([^}]*))?\}`)

// unterminatedTagPattern flags a stray '{' with no matching '}' on the line.
var unterminatedTagPattern = regexp.MustCompile(`\{[^}]*$`)

var recognizedTagKinds = map[string]TagKind{
	"scene":      TagScene,
	"camera":     TagCamera,
	"mood":       TagMood,
	"focus":      TagFocus,
	"transition": TagTransition,
	"style":      TagStyle,
	"tempo":      TagTempo,
	"time":       TagTime,
	"lipsync":    TagLipsync,
}

// ParseLines turns raw input into ParsedLines and tag/format Diagnostics in
// one pass: detect the input format (C2), split into lines, then strip
// inline tags from each line's text (C1).
func ParseLines(text string) ([]ParsedLine, []Diagnostic) {
	format := DetectFormat(text)
	return parseLinesForFormat(text, format)
}

// ParseTags extracts tags from a single line of text, in isolation from
// line-format detection. Returns the tag-stripped text, the tags found, and
// any diagnostics (unterminated tag, bad time value).
func ParseTags(lineNumber uint32, line string) (string, []Tag, []Diagnostic) {
	var tags []Tag
	var diags []Diagnostic

	matches := tagPattern.FindAllStringSubmatchIndex(line, -1)
	var out strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		out.WriteString(line[last:start])
		last = end

		kindRaw := line[m[2]:m[3]]
		kind := strings.ToLower(kindRaw)
		var value string
		hasValue := m[4] != -1
		if hasValue {
			value = strings.TrimSpace(line[m[4]:m[5]])
		}

		tk, recognized := recognizedTagKinds[kind]
		if !recognized {
			diags = append(diags, Diagnostic{
				LineNumber: lineNumber,
				Message:    fmt.Sprintf("unrecognized tag kind %q", kindRaw),
			})
			tk = TagKind(kind)
		}

		tags = append(tags, Tag{
			Kind:       tk,
			Value:      value,
			LineIndex:  lineNumber,
			CharOffset: uint32(start),
			Recognized: recognized,
		})
	}
	out.WriteString(line[last:])
	stripped := out.String()

	// An unterminated '{' in the remaining (post-strip) text is left as
	// literal text, with a diagnostic.
	if unterminatedTagPattern.MatchString(stripped) {
		diags = append(diags, Diagnostic{
			LineNumber: lineNumber,
			Message:    "unterminated tag",
		})
	}

	// Resolve time-tag values into timestamps lazily: caller (ParsedLine
	// construction) calls parseTimeTagValue per time tag.
	for i := range tags {
		if tags[i].Kind == TagTime {
			if _, ok := parseTimeTagValue(tags[i].Value); !ok {
				diags = append(diags, Diagnostic{
					LineNumber: lineNumber,
					Message:    fmt.Sprintf("invalid time value %q", tags[i].Value),
				})
			}
		}
	}

	return stripped, tags, diags
}

// parseTimeTagValue parses "mm:ss(.mmm)" or a plain-seconds value into
// milliseconds.
func parseTimeTagValue(v string) (uint64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if strings.Contains(v, ":") {
		parts := strings.SplitN(v, ":", 2)
		mins, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, false
		}
		secPart := parts[1]
		secs, ms, ok := parseSecondsFraction(secPart)
		if !ok {
			return 0, false
		}
		return uint64(mins)*60000 + uint64(secs)*1000 + uint64(ms), true
	}
	secs, ms, ok := parseSecondsFraction(v)
	if !ok {
		return 0, false
	}
	return uint64(secs)*1000 + uint64(ms), true
}

// parseSecondsFraction parses "ss" or "ss.mmm" into whole seconds and a
// millisecond remainder.
func parseSecondsFraction(s string) (secs int, ms int, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole = s[:i]
		frac = s[i+1:]
	}
	var err error
	secs, err = strconv.Atoi(whole)
	if err != nil {
		return 0, 0, false
	}
	if frac == "" {
		return secs, 0, true
	}
	for len(frac) < 3 {
		frac += "0"
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	ms, err = strconv.Atoi(frac)
	if err != nil {
		return 0, 0, false
	}
	return secs, ms, true
}

// RemoveAllTags strips every {kind}/{kind:value} tag from text, leaving the
// rest of the text untouched (used for the round-trip invariant in §8).
func RemoveAllTags(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped, _, _ := ParseTags(uint32(i+1), line)
		lines[i] = stripped
	}
	return strings.Join(lines, "\n")
}

// InjectTimestamps inserts {time: mm:ss.mmm} tags into text based on a word
// list, at the cadence of intervalMS. When atLineStarts is true, a tag is
// inserted before every line whose first word falls intervalMS or more after
// the previous injection; existing time tags are never duplicated.
func InjectTimestamps(text string, words []WordTiming, intervalMS uint64, atLineStarts bool) string {
	if len(words) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")

	// Build a flat, whitespace-tokenized view of the text to map lines to
	// word indices in order.
	wordIdx := 0
	var lastInjectedMS uint64
	injectedAny := false

	for li, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		_, existingTags, _ := ParseTags(uint32(li+1), line)
		hasTimeTag := false
		for _, t := range existingTags {
			if t.Kind == TagTime {
				hasTimeTag = true
				break
			}
		}

		tokenCount := len(strings.Fields(trimmed))
		firstWordMS, ok := nthWordStart(words, wordIdx)
		wordIdx += tokenCount

		if !atLineStarts || !ok || hasTimeTag {
			continue
		}
		if injectedAny && firstWordMS < lastInjectedMS+intervalMS {
			continue
		}

		stamp := formatTimestamp(firstWordMS)
		lines[li] = fmt.Sprintf("{time:%s}%s", stamp, line)
		lastInjectedMS = firstWordMS
		injectedAny = true
	}

	return strings.Join(lines, "\n")
}

func nthWordStart(words []WordTiming, n int) (uint64, bool) {
	if n < 0 || n >= len(words) {
		return 0, false
	}
	return words[n].Span.StartMS, true
}

func formatTimestamp(ms uint64) string {
	totalMS := ms
	mins := totalMS / 60000
	rem := totalMS % 60000
	secs := rem / 1000
	millis := rem % 1000
	return fmt.Sprintf("%02d:%02d.%03d", mins, secs, millis)
}
