package enrich

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// ExtractText reads the content of a plain-text or markdown file, truncated
// to the configured byte limit. A limit of zero reads the whole file.
func ExtractText(path string, limit int64) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	// Truncation can split a multi-byte rune; drop the partial tail.
	for len(data) > 0 && !utf8.Valid(data) {
		data = data[:len(data)-1]
	}

	return strings.TrimRight(string(data), "\x00"), nil
}
