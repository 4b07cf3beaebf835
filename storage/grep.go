package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrInvalidPattern indicates a search pattern or flag set that cannot be compiled
var ErrInvalidPattern = errors.New("invalid search pattern")

// MaxLineLength bounds a single line during search
const MaxLineLength = 16 * 1024 * 1024

// Match is a matching line, numbered from 1
type Match struct {
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
}

// Grep returns the lines of the object at key that match pattern. The object
// is streamed when the adapter supports it and read as text otherwise.
func Grep(ctx context.Context, a Adapter, key string, pattern *regexp.Regexp) ([]Match, error) {
	if pattern == nil {
		return nil, NewStorageError("Grep", ErrInvalidPattern).WithIdentity(a.Identity()).WithKey(key)
	}

	if r, ok := a.(StreamReader); ok {
		rc, err := r.OpenReadStream(ctx, key)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return scanMatches(ctx, a, key, rc, pattern)
	}

	if r, ok := a.(TextReader); ok {
		text, err := r.ReadText(ctx, key)
		if err != nil {
			return nil, err
		}
		return scanMatches(ctx, a, key, strings.NewReader(text), pattern)
	}

	return nil, NewStorageError("Grep", ErrUnsupported).WithIdentity(a.Identity()).WithKey(key)
}

func scanMatches(ctx context.Context, a Adapter, key string, r io.Reader, pattern *regexp.Regexp) ([]Match, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	scanner.Split(scanLines)

	matches := []Match{}
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if lineNumber%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, NewStorageError("Grep", err).WithIdentity(a.Identity()).WithKey(key)
			}
		}
		line := scanner.Text()
		if pattern.MatchString(line) {
			matches = append(matches, Match{LineNumber: lineNumber, Line: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewStorageError("Grep", err).WithIdentity(a.Identity()).WithKey(key)
	}
	return matches, nil
}

// scanLines is a bufio.SplitFunc that ends lines at "\n", "\r\n" or a lone "\r"
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A trailing "\r" may be the first half of "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// CompilePattern compiles a regular expression written with JavaScript-style
// flags. "i", "m" and "s" map to the RE2 flags of the same name; "g", "u",
// "y" and "d" have no meaning for line matching and are ignored.
func CompilePattern(pattern, flags string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: pattern is empty", ErrInvalidPattern)
	}

	var inline strings.Builder
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return nil, fmt.Errorf("%w: duplicate flag %q", ErrInvalidPattern, f)
		}
		seen[f] = true

		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'u', 'y', 'd':
		default:
			return nil, fmt.Errorf("%w: unsupported flag %q", ErrInvalidPattern, f)
		}
	}

	expr := pattern
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + pattern
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}
