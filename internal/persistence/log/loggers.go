package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"scarify.ai/internal/scarify"
)

// JSONLZstdWriter appends one JSON document per line to an hourly rotated
// zstd file: <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	dir     string
	prefix  string
	now     func() time.Time
	onClose func(path string)

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

// LoggerOptions.OnClose is called with the path of every file the writer
// finishes, on rotation and on Close.
type LoggerOptions struct {
	OnClose func(path string)
}

func NewJSONLZstdWriter(dir, prefix string, opts LoggerOptions) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now, onClose: opts.OnClose}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour {
		if err := w.openLocked(hour); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	// Flush the encoder too so a crash loses at most the current line.
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.hour = f, enc, hour
	w.buf = bufio.NewWriterSize(enc, 32*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.buf != nil {
		err = w.buf.Flush()
		w.buf = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
		if w.onClose != nil {
			w.onClose(w.path(w.hour))
		}
	}
	w.hour = ""
	return err
}

func (w *JSONLZstdWriter) path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// AuditLogger writes registry audit entries under <dataDir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string, opts LoggerOptions) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(AuditDir(dataDir), "audit", opts)}
}

func AuditDir(dataDir string) string { return filepath.Join(dataDir, "audit") }

func (l *AuditLogger) WriteAudit(e scarify.AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                          { return l.w.Close() }

// AuditFiles lists audit files in dir, oldest first.
func AuditFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, "audit-") || !strings.HasSuffix(n, ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, n))
	}
	sort.Strings(out)
	return out, nil
}

// ReadAuditFile decodes every entry in one audit file. A truncated tail
// (process killed mid-write) ends the read without an error.
func ReadAuditFile(path string) ([]scarify.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []scarify.AuditEntry
	jd := json.NewDecoder(dec)
	for {
		var e scarify.AuditEntry
		err := jd.Decode(&e)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			if len(out) > 0 && (errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(err.Error(), "unexpected EOF")) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}
