package stream

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	maxListBytes = 8 << 20
	maxTags      = 500
)

var VideoExtensions = []string{".mp4", ".mov", ".m4v", ".webm"}

var ImageExtensions = []string{".jpg"}

var errListTooLarge = fmt.Errorf("list exceeds %d bytes", maxListBytes)

// readLines returns the trimmed, non-empty lines of r. Lists larger than
// maxListBytes are rejected rather than truncated.
func readLines(r io.Reader) ([]string, error) {
	limited := &io.LimitedReader{R: r, N: maxListBytes + 1}
	scanner := bufio.NewScanner(limited)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for scanner.Scan() {
		raw := scanner.Bytes()
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("line %d is not valid UTF-8", len(lines)+1)
		}
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	if limited.N == 0 {
		return nil, errListTooLarge
	}
	return lines, nil
}

// SplitTags splits on commas and whitespace, strips leading '#', drops
// duplicates and caps the result.
func SplitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	tags := lo.FilterMap(fields, func(f string, _ int) (string, bool) {
		tag := strings.TrimLeft(strings.TrimSpace(f), "#")
		return tag, tag != ""
	})
	tags = lo.Uniq(tags)

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// ItemName applies the naming convention for binary streams.
func ItemName(name string, index int, ext string) string {
	if index == 0 {
		return name + ext
	}
	return fmt.Sprintf("%s (%d)%s", name, index, ext)
}

// candidateNames lists the names to probe for a manifest entry: the entry
// itself when it has an extension, every known extension otherwise.
func candidateNames(entry string, exts []string) []string {
	if path.Ext(entry) != "" {
		return []string{entry}
	}
	return lo.Map(exts, func(ext string, _ int) string { return entry + ext })
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	return lo.Contains(exts, ext)
}
