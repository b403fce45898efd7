package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"uxtrace/src/internal/format"

	"github.com/lixenwraith/log"
)

// CSVFiles is the flat-file half of the collector: received CSV lines
// append to a headered file alongside the SQLite store, so the two
// delivery formats land in independent stores.
type CSVFiles struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

// CSVStats describes the CSV file store.
type CSVStats struct {
	Lines     int64   `json:"lines"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
}

// NewCSVFiles opens the CSV store in dir, creating the file with its
// header row when missing.
func NewCSVFiles(dir string, logger *log.Logger) (*CSVFiles, error) {
	if dir == "" {
		dir = "./"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create CSV directory: %w", err)
	}

	c := &CSVFiles{
		path:   filepath.Join(dir, "frontend_logs.csv"),
		logger: logger,
	}
	if err := c.ensureHeader(); err != nil {
		return nil, err
	}

	logger.Info("msg", "CSV file store ready",
		"component", "csv_store",
		"path", c.path)
	return c, nil
}

func (c *CSVFiles) ensureHeader() error {
	if _, err := os.Stat(c.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(format.CSVHeaders, ",") + "\n"); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return nil
}

// AppendLines appends already-serialized CSV lines.
func (c *CSVFiles) AppendLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := w.WriteString(strings.TrimRight(line, "\r\n") + "\n"); err != nil {
			return fmt.Errorf("failed to append CSV line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush CSV file: %w", err)
	}
	return nil
}

// Stats counts data lines (header excluded) and file size.
func (c *CSVFiles) Stats() (CSVStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats CSVStats

	info, err := os.Stat(c.path)
	if err != nil {
		return stats, fmt.Errorf("failed to stat CSV file: %w", err)
	}
	stats.SizeBytes = info.Size()
	stats.SizeMB = float64(info.Size()) / (1024 * 1024)

	f, err := os.Open(c.path)
	if err != nil {
		return stats, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		stats.Lines++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to count CSV lines: %w", err)
	}
	if stats.Lines > 0 {
		stats.Lines-- // header
	}
	return stats, nil
}

// Clear truncates the file back to its header row.
func (c *CSVFiles) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove CSV file: %w", err)
	}
	if err := c.ensureHeader(); err != nil {
		return err
	}
	c.logger.Info("msg", "CSV file store cleared", "component", "csv_store")
	return nil
}

// Export copies the file into exportDir under a timestamped name and
// returns the created path.
func (c *CSVFiles) Export(exportDir string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("frontend_logs_%s.csv", time.Now().Format("20060102_150405"))
	dst := filepath.Join(exportDir, name)

	src, err := os.Open(c.path)
	if err != nil {
		return "", fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("failed to copy CSV file: %w", err)
	}
	return dst, nil
}
