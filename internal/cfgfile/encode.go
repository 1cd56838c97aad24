package cfgfile

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Encode renders the canonical text form. Sections are sorted by name, the
// global section has no header, and keys within a section are sorted.
// Comments and formatting of a parsed file are not preserved.
//
// Not every store survives a reload:
//   - strings are quoted without escaping, and a string containing '=' puts a
//     second '=' on its line, which Parse skips;
//   - an empty global section has no header and no keys, so it is lost;
//   - NaN and infinite doubles encode without a '.', and Parse drops them.
func (s *Store) Encode() string {
	var b strings.Builder
	for _, name := range s.SectionNames() {
		if name != GlobalSection {
			b.WriteString("\n[")
			b.WriteString(name)
			b.WriteString("]\n")
		}
		sec := s.data[name]
		for _, key := range sec.Keys() {
			v := sec[key]
			b.WriteString(key)
			b.WriteByte('=')
			if v.kind == KindString {
				b.WriteByte('"')
				b.WriteString(v.s)
				b.WriteByte('"')
			} else {
				b.WriteString(v.Text())
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (s *Store) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Encode())
	return int64(n), err
}

// Save renders the whole store in memory and then overwrites path. A write
// failure is logged and dropped; the in-memory store stays authoritative.
func (s *Store) Save(path string, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	text := s.Encode()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Printf("cfgfile: failed to write file: %s (%v)", path, err)
			return
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.Printf("cfgfile: failed to write file: %s (%v)", path, err)
	}
}
