package backup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	Version = 1
	suffix  = ".cfg.zst"
)

var ErrNoBackups = errors.New("no backups")

type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"`
	Bytes     int       `json:"bytes"`
}

type Backup struct {
	Header Header
	Text   string
}

// Write stores text as <dir>/<unix-nanos>.cfg.zst, a JSON header line then
// the text, and returns the new file's path.
func Write(dir, source, text string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, strconv.FormatInt(now.UnixNano(), 10)+suffix)
	tmp := path + ".tmp"
	if err := writeFile(tmp, Header{
		Version:   Version,
		CreatedAt: now.UTC(),
		Source:    source,
		Bytes:     len(text),
	}, text); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func writeFile(path string, h Header, text string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if _, err := bw.WriteString(text); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func Read(path string) (Backup, error) {
	var b Backup
	f, err := os.Open(path)
	if err != nil {
		return b, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return b, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return b, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &b.Header); err != nil {
		return b, fmt.Errorf("decode header: %w", err)
	}
	if b.Header.Version != Version {
		return b, fmt.Errorf("unsupported backup version %d", b.Header.Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return b, err
	}
	b.Text = string(body)
	return b, nil
}

// List returns backup paths in dir, oldest first.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	type item struct {
		path string
		ts   int64
	}
	var items []item
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(name, suffix), 10, 64)
		if err != nil {
			continue
		}
		items = append(items, item{filepath.Join(dir, name), ts})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ts < items[j].ts })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.path
	}
	return out, nil
}

func Latest(dir string) (string, error) {
	paths, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", ErrNoBackups
	}
	return paths[len(paths)-1], nil
}

// Prune deletes all but the newest keep backups and returns how many it
// removed. keep <= 0 disables pruning.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	paths, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(paths)-removed > keep {
		if err := os.Remove(paths[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
