package cfgfile

import (
	"bufio"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Parse builds a Store from text lines. It never fails: comments are
// skipped, lines without exactly one '=' are ignored, and values that cannot
// be typed are logged and dropped.
//
// Section headers are not validated. The name is everything between the
// leading '[' and the last character, so "[abc" yields section "ab".
func Parse(lines []string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := New()
	current := GlobalSection
	for _, line := range lines {
		if strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			current = ""
			if len(line) >= 2 {
				current = line[1 : len(line)-1]
			}
			s.Section(current)
			continue
		}
		if strings.Count(line, "=") != 1 {
			continue
		}
		key, raw, _ := strings.Cut(line, "=")
		if raw == "" {
			continue
		}
		v, ok := parseValue(raw, logger)
		if !ok {
			continue
		}
		s.SetValue(current, key, v)
	}
	return s
}

func parseValue(raw string, logger *log.Logger) (Value, bool) {
	first := raw[0]
	switch {
	case first == '"':
		if len(raw) < 2 {
			return String(""), true
		}
		return String(raw[1 : len(raw)-1]), true
	case raw == "true":
		return Bool(true), true
	case raw == "false":
		return Bool(false), true
	case strings.Contains(raw, "."):
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Printf("cfgfile: value contained a dot, but couldn't be parsed as a double: %s", raw)
			return Value{}, false
		}
		return Double(f), true
	case isDigit(first) || (first == '-' && len(raw) > 1 && isDigit(raw[1])):
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Printf("cfgfile: value is numeric, but couldn't be parsed as an integer: %s", raw)
			return Value{}, false
		}
		return Int(n), true
	default:
		logger.Printf("cfgfile: value couldn't be parsed: %s", raw)
		return Value{}, false
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func ParseString(text string, logger *log.Logger) *Store {
	return Parse(splitLines(text), logger)
}

// Read parses everything r yields. Only read errors are returned.
func Read(r io.Reader, logger *log.Logger) (*Store, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return Parse(lines, logger), nil
}

// Load reads path into a Store. An unreadable file yields an empty Store; the
// failure is logged only when warnIfMissing is set.
func Load(path string, warnIfMissing bool, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if warnIfMissing {
			logger.Printf("cfgfile: failed to read file: %s (%v); returning an empty store", path, err)
		}
		return New()
	}
	return ParseString(string(b), logger)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
