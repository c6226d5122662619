// Package document turns uploaded files into plain text for task extraction.
package document

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxSize is the largest upload accepted, in bytes
const MaxSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrNotText         = errors.New("file is not valid UTF-8 text")
)

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// Supported reports whether fileName has an extension Extract can read
func Supported(fileName string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Extract reads the text content of fileName from r
func Extract(fileName string, r io.Reader) (string, error) {
	if !Supported(fileName) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(fileName))
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}
	if !utf8.Valid(data) {
		return "", ErrNotText
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}
