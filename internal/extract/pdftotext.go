// Package extract wraps poppler's pdftotext as the PDF extraction backend.
// The binary is invoked through a CommandRunner so tests can substitute
// canned output.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"ragspan/internal/domain"
)

// ErrPDFToolNotFound is returned by CheckAvailable when pdftotext is missing.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Config configures the pdftotext backend.
type Config struct {
	Binary  string
	BBox    bool
	Timeout time.Duration
}

// PDFToText extracts PDF layout by shelling out to pdftotext.
type PDFToText struct {
	runner  CommandRunner
	binary  string
	bbox    bool
	timeout time.Duration
}

// New creates a backend that runs the real binary.
func New(cfg Config) *PDFToText {
	return NewWithRunner(cfg, execRunner{})
}

// NewWithRunner creates a backend with an injected runner.
func NewWithRunner(cfg Config, runner CommandRunner) *PDFToText {
	if cfg.Binary == "" {
		cfg.Binary = "pdftotext"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &PDFToText{runner: runner, binary: cfg.Binary, bbox: cfg.BBox, timeout: cfg.Timeout}
}

// CheckAvailable reports whether the binary can be found.
func CheckAvailable(binary string) error {
	if binary == "" {
		binary = "pdftotext"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to get pdftotext.
func InstallInstructions() string {
	return "pdftotext is part of poppler: brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
}

// Extract returns the page/line/word layout of a PDF.
func (p *PDFToText) Extract(ctx context.Context, data []byte) (domain.Layout, error) {
	if !looksLikePDF(data) {
		return domain.Layout{}, fmt.Errorf("%w: missing PDF header", domain.ErrExtraction)
	}
	f, err := os.CreateTemp("", "ragspan-*.pdf")
	if err != nil {
		return domain.Layout{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return domain.Layout{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Layout{}, fmt.Errorf("close temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{"-enc", "UTF-8", f.Name(), "-"}
	if p.bbox {
		args = append([]string{"-bbox-layout"}, args...)
	}
	out, err := p.runner.Run(ctx, p.binary, args...)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return domain.Layout{}, fmt.Errorf("%w: pdftotext timed out after %s", domain.ErrExtraction, p.timeout)
		case strings.Contains(strings.ToLower(err.Error()), "password"):
			return domain.Layout{}, fmt.Errorf("%w: document is encrypted", domain.ErrExtraction)
		default:
			return domain.Layout{}, fmt.Errorf("%w: pdftotext failed: %v", domain.ErrExtraction, err)
		}
	}
	if p.bbox {
		layout, err := parseBBoxLayout(out)
		if err != nil {
			return domain.Layout{}, fmt.Errorf("%w: parse bbox layout: %v", domain.ErrExtraction, err)
		}
		return layout, nil
	}
	return parsePlain(out), nil
}

func looksLikePDF(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("%PDF-"))
}

// parsePlain splits pdftotext's default output into pages on form feeds.
// Words carry no geometry in this mode.
func parsePlain(out []byte) domain.Layout {
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	layout := domain.Layout{Pages: make([]domain.PageLayout, 0, len(pages))}
	for _, page := range pages {
		var pl domain.PageLayout
		for _, line := range strings.Split(page, "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			ll := domain.LineLayout{Words: make([]domain.Word, len(fields))}
			for i, w := range fields {
				ll.Words[i] = domain.Word{Text: w}
			}
			pl.Lines = append(pl.Lines, ll)
		}
		layout.Pages = append(layout.Pages, pl)
	}
	return layout
}
