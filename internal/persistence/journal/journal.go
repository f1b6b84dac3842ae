package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"skyrise.dev/internal/sim/world"
)

// LoggerOptions tunes segment rotation for the JSONL loggers.
type LoggerOptions struct {
	// RotateLayout is the time layout that names segments; the writer
	// rotates whenever the formatted stamp changes. Empty means hourly.
	RotateLayout string
	// OnClose receives the path of each finished segment after it has
	// been flushed and closed, so it can be handed to the blob mirror
	// the moment it stops growing.
	OnClose func(path string)
}

const defaultRotateLayout = "2006-01-02-15"

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	layout  string
	onClose func(path string)

	mu       sync.Mutex
	curStamp string
	curPath  string
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return NewJSONLZstdWriterWithOptions(baseDir, prefix, LoggerOptions{})
}

func NewJSONLZstdWriterWithOptions(baseDir, prefix string, opts LoggerOptions) *JSONLZstdWriter {
	layout := opts.RotateLayout
	if layout == "" {
		layout = defaultRotateLayout
	}
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		layout:  layout,
		onClose: opts.OnClose,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	stamp := time.Now().UTC().Format(w.layout)
	if stamp != w.curStamp {
		if err := w.rotateLocked(stamp); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(stamp string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForStamp(stamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curStamp = stamp
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	if w.curPath != "" && w.onClose != nil {
		w.onClose(w.curPath)
	}
	w.curPath = ""
	w.curStamp = ""
	return err1
}

func (w *JSONLZstdWriter) pathForStamp(stamp string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, stamp))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(towerDir string) *TickLogger {
	return NewTickLoggerWithOptions(towerDir, LoggerOptions{})
}

func NewTickLoggerWithOptions(towerDir string, opts LoggerOptions) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriterWithOptions(filepath.Join(towerDir, "events"), "events", opts)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes audit JSONL entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(towerDir string) *AuditLogger {
	return NewAuditLoggerWithOptions(towerDir, LoggerOptions{})
}

func NewAuditLoggerWithOptions(towerDir string, opts LoggerOptions) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriterWithOptions(filepath.Join(towerDir, "audit"), "audit", opts)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
