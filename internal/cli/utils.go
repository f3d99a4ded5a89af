// Package cli provides output and history helpers for the ozlaw command.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const excerptLen = 160

// WriteAnswer writes an answer, and in text mode the sources it was based on, to w.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if resp.StandaloneQuestion != "" {
		fmt.Fprintf(w, "\n(searched for: %s)\n", resp.StandaloneQuestion)
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range resp.Sources {
			fmt.Fprintf(w, "  %d. %s [chunk %d, score %.4f]\n", i+1, s.Source, s.ChunkIndex, s.Score)
			if s.Excerpt != "" {
				fmt.Fprintf(w, "     %s\n", utils.Truncate(s.Excerpt, excerptLen))
			}
		}
	}
	fmt.Fprintf(w, "\n(%dms)\n", resp.QueryTime)
	return nil
}

// WriteIngestReport writes a summary of an ingestion run to w.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Ingested %d files (%d chunks), skipped %d unchanged, %d failed\n",
		len(report.Ingested), report.Chunks, len(report.Skipped), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  failed: %s [%s] %s\n", f.Path, f.Kind, f.Error)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// LoadHistory reads a conversation history file. A missing file is an empty history.
func LoadHistory(path string) (models.History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var h models.History
	if len(data) == 0 {
		return models.History{}, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return h, nil
}

// SaveHistory writes h to path, replacing it atomically.
func SaveHistory(path string, h models.History) error {
	if h == nil {
		h = models.History{}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
