package offsite

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

type MirrorOptions struct {
	// DataDir is the local root; object keys are paths relative to it.
	DataDir string
	Prefix  string

	Workers       int
	QueueCapacity int
	EnqueueWait   time.Duration
	Attempts      int
	RetryBase     time.Duration

	Logger *log.Logger
}

// Mirror copies finished files (closed audit logs, config backups) to an
// Uploader in the background. Enqueue never blocks longer than EnqueueWait.
type Mirror struct {
	up   Uploader
	opts MirrorOptions

	jobs chan string
	wg   sync.WaitGroup
	once sync.Once

	enqueuedTotal      atomic.Uint64
	droppedTotal       atomic.Uint64
	uploadSuccessTotal atomic.Uint64
	uploadFailTotal    atomic.Uint64
	lastSuccessUnix    atomic.Int64
	lastErrorUnix      atomic.Int64
}

func NewMirror(up Uploader, opts MirrorOptions) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 256
	}
	if opts.EnqueueWait <= 0 {
		opts.EnqueueWait = 25 * time.Millisecond
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	opts.Prefix = strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/")

	m := &Mirror{
		up:   up,
		opts: opts,
		jobs: make(chan string, opts.QueueCapacity),
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.uploadOne(p)
			}
		}()
	}
	return m
}

// Enqueue is nil-safe so callers can pass a disabled mirror around.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.enqueuedTotal.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	timer := time.NewTimer(m.opts.EnqueueWait)
	defer timer.Stop()
	select {
	case m.jobs <- localPath:
	case <-timer.C:
		n := m.droppedTotal.Add(1)
		m.printf("offsite: drop %s (queue full, dropped_total=%d)", localPath, n)
	}
}

// Close drains the queue and waits for in-flight uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.jobs)
		m.wg.Wait()
	})
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(m.jobs),
		QueueCapacity:      cap(m.jobs),
		EnqueuedTotal:      m.enqueuedTotal.Load(),
		DroppedTotal:       m.droppedTotal.Load(),
		UploadSuccessTotal: m.uploadSuccessTotal.Load(),
		UploadFailTotal:    m.uploadFailTotal.Load(),
		LastSuccessUnix:    m.lastSuccessUnix.Load(),
		LastErrorUnix:      m.lastErrorUnix.Load(),
	}
}

func (m *Mirror) uploadOne(localPath string) {
	key, err := m.ObjectKey(localPath)
	if err != nil {
		m.uploadFailTotal.Add(1)
		m.printf("offsite: skip %s: %v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.up.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			break
		}
		if attempt < m.opts.Attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.opts.RetryBase)
		}
	}
	if lastErr != nil {
		m.uploadFailTotal.Add(1)
		m.lastErrorUnix.Store(time.Now().Unix())
		m.printf("offsite: upload %s failed: %v", key, lastErr)
		return
	}
	m.uploadSuccessTotal.Add(1)
	m.lastSuccessUnix.Store(time.Now().Unix())
}

// ObjectKey maps a file under DataDir to its object key.
func (m *Mirror) ObjectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	base, err := filepath.Abs(m.opts.DataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.opts.Prefix != "" {
		rel = path.Join(m.opts.Prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}
