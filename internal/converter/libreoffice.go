package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LibreOffice transcodes docx/odt/txt/markdown buffers into PDF so they can
// enter the page-editing flow. It is a collaborator of the editing core, not
// part of it: PDF uploads never pass through here.
type LibreOffice struct {
	timeout   time.Duration
	semaphore chan struct{}
	available bool
}

// New probes for a LibreOffice installation. When none is found the
// converter stays constructed but reports conversions as failures.
func New(maxWorkers int, timeout time.Duration) *LibreOffice {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	l := &LibreOffice{
		timeout:   timeout,
		semaphore: make(chan struct{}, maxWorkers),
	}
	out, err := exec.Command("libreoffice", "--version").Output()
	if err != nil {
		log.Warn().Err(err).Msg("LibreOffice not found, document conversion disabled")
		return l
	}
	l.available = true
	log.Info().Str("version", strings.TrimSpace(string(out))).Msg("LibreOffice found")
	return l
}

// Available reports whether conversions can run.
func (l *LibreOffice) Available() bool { return l.available }

// Convert turns a document buffer into PDF bytes. ext is the source
// extension including the dot (".docx", ".md", ...). Concurrent conversions
// are bounded by the worker semaphore.
func (l *LibreOffice) Convert(ctx context.Context, data []byte, ext string) ([]byte, error) {
	if !l.available {
		return nil, fmt.Errorf("LibreOffice is not installed")
	}

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.semaphore }()

	workDir, err := os.MkdirTemp("", "pagedesk-convert-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input"+ext)
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	// Each run gets its own profile so parallel invocations don't fight over
	// the LibreOffice lock file.
	profileDir := filepath.Join(workDir, "profile_"+uuid.NewString())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(
		runCtx,
		"libreoffice",
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("conversion timeout after %v", l.timeout)
		}
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	outputPath := filepath.Join(workDir, "input.pdf")
	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("conversion produced no output: %w", err)
	}

	log.Info().
		Str("ext", ext).
		Int("in_size", len(data)).
		Int("out_size", len(out)).
		Dur("took", time.Since(start)).
		Msg("converted document to PDF")
	return out, nil
}
