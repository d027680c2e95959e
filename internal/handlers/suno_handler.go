package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nlaakstudios/storyboard-studio/config"
	"github.com/nlaakstudios/storyboard-studio/pkg/suno"
)

// SunoHandler wraps the C8 Suno package preprocessor (pkg/suno): uploading a
// Suno multi-stem export zip, discovering its stems, and merging a caller's
// stem selection into one audio file and one MIDI file, ground in the
// teacher's upload_handler.go multipart-upload idiom.
type SunoHandler struct {
	config *config.Config
}

// NewSunoHandler creates a new Suno handler.
func NewSunoHandler(cfg *config.Config) *SunoHandler {
	return &SunoHandler{config: cfg}
}

// Preprocess accepts a multipart Suno export zip, discovers its stems, merges
// the requested selection into one audio and one MIDI output, and returns
// the resulting file paths.
func (h *SunoHandler) Preprocess(c *gin.Context) {
	file, err := c.FormFile("package")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing package file"})
		return
	}

	jobID := uuid.NewString()
	zipPath := filepath.Join(h.config.TempPath, jobID+".zip")
	if err := c.SaveUploadedFile(file, zipPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(zipPath)

	pkg, err := suno.Discover(zipPath)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	defer pkg.Close()

	selected := c.PostFormArray("stems")
	audioSel := make(map[suno.StemName]string)
	midiSel := make(map[suno.StemName]string)
	if len(selected) == 0 {
		audioSel = pkg.AudioStems
		midiSel = pkg.MidiFiles
	} else {
		for _, raw := range selected {
			stem := suno.StemName(raw)
			if p, ok := pkg.AudioStems[stem]; ok {
				audioSel[stem] = p
			}
			if p, ok := pkg.MidiFiles[stem]; ok {
				midiSel[stem] = p
			}
		}
	}

	result := gin.H{
		"job_id":       jobID,
		"audio_stems":  stemNames(pkg.AudioStems),
		"midi_stems":   stemNames(pkg.MidiFiles),
		"linked_stems": pkg.LinkedStems(),
	}

	if len(audioSel) > 0 {
		audioOut := filepath.Join(h.config.SunoPath, jobID+".wav")
		if err := suno.MergeAudio(audioSel, audioOut, h.config.FfmpegPath); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("audio merge failed: %v", err)})
			return
		}
		result["audio_path"] = audioOut
	}

	if len(midiSel) > 0 {
		merged, err := suno.MergeMidi(midiSel)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("midi merge failed: %v", err)})
			return
		}
		midiOut := filepath.Join(h.config.SunoPath, jobID+".mid")
		f, err := os.Create(midiOut)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		_, werr := merged.WriteTo(f)
		f.Close()
		if werr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": werr.Error()})
			return
		}
		result["midi_path"] = midiOut
	}

	c.JSON(http.StatusOK, result)
}

func stemNames(m map[suno.StemName]string) []suno.StemName {
	names := make([]suno.StemName, 0, len(m))
	for s := range m {
		names = append(names, s)
	}
	return names
}
