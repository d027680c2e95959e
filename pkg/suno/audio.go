package suno

import (
	"fmt"
	"os/exec"
	"sort"
)

// MergeAudio mixes the selected audio stems into a single file at outPath
// by shelling out to ffmpeg, the same exec.Command+CombinedOutput pattern
// pkg/audio/analyzer.go uses to invoke its Python analyzer: build an
// argument list, run it, and fold a non-zero exit plus captured output into
// one error (spec.md §4.8).
//
// A single selected stem is not mixed: it is converted on its own to
// stereo 16-bit PCM, without the amix filter.
// Selecting zero stems is a caller error.
//
// ffmpegPath selects the muxer binary to invoke; an empty string falls back
// to "ffmpeg" on $PATH, matching STORYBOARD_FFMPEG_PATH's documented default
// in config.Config.
func MergeAudio(stemPaths map[StemName]string, outPath, ffmpegPath string) error {
	if len(stemPaths) == 0 {
		return &AudioMergeError{Kind: "no_stems_selected"}
	}

	stems := make([]StemName, 0, len(stemPaths))
	for s := range stemPaths {
		stems = append(stems, s)
	}
	sort.Slice(stems, func(i, j int) bool { return stems[i] < stems[j] })

	if len(stems) == 1 {
		return runFfmpeg(ffmpegPath, []string{"-y", "-i", stemPaths[stems[0]], "-ac", "2", "-c:a", "pcm_s16le", outPath})
	}

	args := []string{"-y"}
	for _, s := range stems {
		args = append(args, "-i", stemPaths[s])
	}
	filter := fmt.Sprintf("amix=inputs=%d:duration=longest", len(stems))
	args = append(args, "-filter_complex", filter, "-ac", "2", outPath)

	return runFfmpeg(ffmpegPath, args)
}

func runFfmpeg(ffmpegPath string, args []string) error {
	bin := ffmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, lookErr := exec.LookPath(bin); lookErr != nil {
			return &AudioMergeError{Kind: "muxer_missing"}
		}
		return &AudioMergeError{Kind: "muxer_failed", StderrExcerpt: excerpt(output, 400)}
	}
	return nil
}

func excerpt(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
