package suno

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// stemFilenamePattern pulls the parenthesized stem label out of a Suno
// export entry's base filename, e.g. "MySong (Vocals).wav" -> "Vocals".
var stemFilenamePattern = regexp.MustCompile(`(?i)\(([^)]+)\)\.(wav|mp3|m4a|ogg|mid|midi)$`)

var audioExts = map[string]bool{".wav": true, ".mp3": true, ".m4a": true, ".ogg": true}
var midiExts = map[string]bool{".mid": true, ".midi": true}

// Discover opens a Suno export zip, extracts it into a scope-bound temp
// directory, and classifies every entry whose filename carries a recognized
// "(StemName)" component into AudioStems or MidiFiles. A zip that yields no
// recognized audio stem is rejected: there is nothing for the preprocessor
// to offer downstream (spec.md §4.8). Callers must call Close on the
// returned Package once done with it.
func Discover(zipPath string) (*Package, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, &PackageError{Kind: "invalid_zip"}
	}
	defer r.Close()

	dir, err := os.MkdirTemp("", "suno-package-*")
	if err != nil {
		return nil, &PackageError{Kind: "invalid_zip"}
	}

	pkg := &Package{
		SourceZip:  zipPath,
		AudioStems: make(map[StemName]string),
		MidiFiles:  make(map[StemName]string),
		extractDir: dir,
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		m := stemFilenamePattern.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		stem, ok := lookupRecognizedStem(strings.TrimSpace(m[1]))
		if !ok {
			continue
		}

		ext := strings.ToLower(filepath.Ext(base))
		isAudio := audioExts[ext]
		isMidi := midiExts[ext]
		if !isAudio && !isMidi {
			continue
		}

		destPath := filepath.Join(dir, sanitizeEntryName(f.Name))
		if err := extractEntry(f, destPath); err != nil {
			os.RemoveAll(dir)
			return nil, &PackageError{Kind: "invalid_zip"}
		}

		if isAudio {
			pkg.AudioStems[stem] = destPath
		} else {
			pkg.MidiFiles[stem] = destPath
		}
	}

	if len(pkg.AudioStems) == 0 {
		os.RemoveAll(dir)
		return nil, &PackageError{Kind: "no_recognized_stems"}
	}

	return pkg, nil
}

func extractEntry(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// sanitizeEntryName strips any directory traversal from a zip entry's
// stored path, keeping only the base filename under the extraction
// directory (zip archives are not a trusted input).
func sanitizeEntryName(name string) string {
	return filepath.Base(filepath.Clean(name))
}
