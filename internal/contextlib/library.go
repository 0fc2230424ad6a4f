// Package contextlib loads the passage corpus handed to the QA engine as
// inference context. Operators drop .txt or .pdf documents into a directory;
// with no documents configured the engine receives a placeholder passage.
package contextlib

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Placeholder is the context passage used when no documents are available.
const Placeholder = " "

// Library holds the loaded passage corpus.
type Library struct {
	passages []string
	joined   string
}

// Load reads all .txt and .pdf documents under dir. An empty dir means an
// empty library. Unreadable files are logged and skipped; a missing
// directory is an error.
func Load(dir string) (*Library, error) {
	lib := &Library{}
	if dir == "" {
		return lib, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading context directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var text string
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt":
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("skipping context document", "path", path, "error", err)
				continue
			}
			text = string(data)
		case ".pdf":
			text, err = extractPDF(path)
			if err != nil {
				slog.Warn("skipping context document", "path", path, "error", err)
				continue
			}
		default:
			continue
		}

		if text = strings.TrimSpace(text); text != "" {
			lib.passages = append(lib.passages, text)
		}
	}

	lib.joined = strings.Join(lib.passages, "\n\n")
	return lib, nil
}

// Context returns the passage handed to the engine alongside each question.
func (l *Library) Context() string {
	if l.joined == "" {
		return Placeholder
	}
	return l.joined
}

// Len returns the number of loaded passages.
func (l *Library) Len() int {
	return len(l.passages)
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
