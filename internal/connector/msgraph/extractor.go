package msgraph

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor handles the formats that are already text on the wire.
// Binary office formats need a dedicated extractor plugged in instead.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(name, mimeType string, data []byte) (string, error) {
	if !isTextual(name, mimeType) {
		return "", nil
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid utf-8", name)
	}
	return string(data), nil
}

func isTextual(name, mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/javascript":
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".csv", ".json", ".xml", ".yaml", ".yml", ".log":
		return true
	}
	return false
}
