// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/absmach/courier/dispatch"
	"github.com/klauspost/compress/gzip"
)

// FileConfig holds file sink settings.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// MaxSizeBytes rotates the log when it grows past this size.
	// Zero disables rotation.
	MaxSizeBytes int64 `yaml:"max_size_bytes"`

	// Compress gzips rotated files in the background.
	Compress bool `yaml:"compress"`
}

// FileSink appends one timestamp-prefixed NDJSON record per audit event:
//
//	2026-01-02T15:04:05.999999999Z {"tracking_id":...}
//
// Write failures are logged and swallowed.
type FileSink struct {
	cfg    FileConfig
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileSink opens (or creates) the audit log at cfg.Path.
func NewFileSink(cfg FileConfig, logger *slog.Logger) (*FileSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat audit log: %w", err)
	}

	return &FileSink{
		cfg:    cfg,
		logger: logger,
		file:   f,
		size:   info.Size(),
	}, nil
}

// Record implements dispatch.AuditSink.
func (s *FileSink) Record(ev dispatch.AuditEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal audit event",
			slog.String("tracking_id", ev.TrackingID),
			slog.String("error", err.Error()))
		return
	}
	line := ev.Timestamp.UTC().Format(time.RFC3339Nano) + " " + string(data) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxSizeBytes > 0 && s.size+int64(len(line)) > s.cfg.MaxSizeBytes {
		if err := s.rotate(); err != nil {
			s.logger.Error("audit log rotation failed", slog.String("error", err.Error()))
		}
	}

	n, err := s.file.WriteString(line)
	s.size += int64(n)
	if err != nil {
		s.logger.Error("failed to write audit event",
			slog.String("tracking_id", ev.TrackingID),
			slog.String("error", err.Error()))
	}
}

// rotate renames the current log aside and reopens a fresh one. Must be
// called with the mutex held.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", s.cfg.Path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(s.cfg.Path, rotated); err != nil {
		return err
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.size = 0

	if s.cfg.Compress {
		go s.compress(rotated)
	}
	return nil
}

func (s *FileSink) compress(path string) {
	src, err := os.Open(path)
	if err != nil {
		s.logger.Error("failed to open rotated audit log", slog.String("error", err.Error()))
		return
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		s.logger.Error("failed to create compressed audit log", slog.String("error", err.Error()))
		return
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		s.logger.Error("failed to compress rotated audit log", slog.String("error", err.Error()))
		return
	}
	if err := gz.Close(); err != nil {
		s.logger.Error("failed to finalize compressed audit log", slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove rotated audit log", slog.String("error", err.Error()))
	}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
