package storyboard

import (
	"regexp"
	"strings"
)

// bracketPattern strips [bracketed] annotations during normalization.
var bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)

// punctPattern strips punctuation except apostrophes.
var punctPattern = regexp.MustCompile(`[^\w\s']`)

// normalizeText lowercases, strips bracketed text and punctuation (except
// apostrophes), and collapses whitespace — the same normalize-then-tokenize
// shape as the teacher's AlignLyricsWithWhisper (pkg/lyrics/whisper.go),
// generalized from its ad-hoc Contains-based fuzzy match into a proper LCS.
func normalizeText(text string) string {
	s := strings.ToLower(text)
	s = bracketPattern.ReplaceAllString(s, " ")
	s = punctPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return s
}

func tokenize(text string) []string {
	norm := normalizeText(text)
	if norm == "" {
		return nil
	}
	return strings.Fields(norm)
}

// Align reconciles provided lyric text against an extracted transcription
// by longest-common-subsequence matching of normalized tokens (spec.md
// §4.4). It is pure and deterministic: no external calls.
func Align(providedText string, extracted TranscriptionResult) AlignmentResult {
	providedTokens := tokenize(providedText)
	extractedWords := extracted.Words

	extractedTokens := make([]string, len(extractedWords))
	for i, w := range extractedWords {
		extractedTokens[i] = normalizeToken(w.Text)
	}

	pairs := lcsPairs(providedTokens, extractedTokens)

	matched := make([]WordTiming, 0, len(pairs))
	matchedProvided := make(map[int]bool, len(pairs))
	matchedExtracted := make(map[int]bool, len(pairs))
	var alignedWords []string

	for _, p := range pairs {
		w := extractedWords[p.j]
		matched = append(matched, WordTiming{
			Text:       providedTokens[p.i],
			Span:       w.Span,
			Confidence: w.Confidence,
		})
		matchedProvided[p.i] = true
		matchedExtracted[p.j] = true
		alignedWords = append(alignedWords, providedTokens[p.i])
	}

	var unmatchedProvided []string
	for i, t := range providedTokens {
		if !matchedProvided[i] {
			unmatchedProvided = append(unmatchedProvided, t)
		}
	}
	var unmatchedExtracted []string
	for j, t := range extractedTokens {
		if !matchedExtracted[j] {
			unmatchedExtracted = append(unmatchedExtracted, t)
		}
	}

	denom := len(providedTokens)
	if len(extractedTokens) > denom {
		denom = len(extractedTokens)
	}
	var similarity float32
	if denom > 0 {
		similarity = float32(len(pairs)) / float32(denom)
	}

	return AlignmentResult{
		Matched:            matched,
		UnmatchedProvided:  unmatchedProvided,
		UnmatchedExtracted: unmatchedExtracted,
		Similarity:         similarity,
		AlignedText:        strings.Join(alignedWords, " "),
	}
}

func normalizeToken(word string) string {
	s := strings.ToLower(word)
	s = bracketPattern.ReplaceAllString(s, "")
	s = punctPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type lcsPair struct{ i, j int }

// lcsPairs computes an index-aligned longest common subsequence between two
// token slices via classic O(n*m) dynamic programming, then backtracks to
// recover the matched (i,j) pairs in order.
func lcsPairs(a, b []string) []lcsPair {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}

	dp := make([][]int32, n+1)
	for i := range dp {
		dp[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var pairs []lcsPair
	i, j := 0, 0
	for i < n && j < m {
		if a[i] == b[j] {
			pairs = append(pairs, lcsPair{i, j})
			i++
			j++
		} else if dp[i+1][j] >= dp[i][j+1] {
			i++
		} else {
			j++
		}
	}
	return pairs
}

// GetTimingForTextSegment searches extracted.Words for the first position
// where at least min(3, len(segmentTokens)) consecutive tokens match the
// segment text; returns the window's (startMS, endMS), or (0,0) if no such
// window exists (spec.md §4.4).
func GetTimingForTextSegment(segmentText string, extracted TranscriptionResult) (uint64, uint64) {
	segTokens := tokenize(segmentText)
	if len(segTokens) == 0 {
		return 0, 0
	}
	need := 3
	if len(segTokens) < need {
		need = len(segTokens)
	}
	if need == 0 {
		return 0, 0
	}

	words := extracted.Words
	extractedTokens := make([]string, len(words))
	for i, w := range words {
		extractedTokens[i] = normalizeToken(w.Text)
	}

	for start := 0; start+need <= len(extractedTokens); start++ {
		matchLen := 0
		for k := 0; k < need && start+k < len(extractedTokens); k++ {
			if k < len(segTokens) && extractedTokens[start+k] == segTokens[k] {
				matchLen++
			} else {
				break
			}
		}
		if matchLen >= need {
			windowEnd := start + matchLen - 1
			return words[start].Span.StartMS, words[windowEnd].Span.EndMS
		}
	}
	return 0, 0
}
