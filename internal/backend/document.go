package backend

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// LoadDocumentFile reads a settings document from disk for upload. Only
// .json files holding valid JSON are accepted.
func LoadDocumentFile(path string) (json.RawMessage, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, NewMalformedInputError("please select a JSON file", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMalformedInputError("cannot read "+filepath.Base(path), err)
	}
	if !json.Valid(data) {
		return nil, NewMalformedInputError("invalid JSON file: "+filepath.Base(path), nil)
	}
	return json.RawMessage(data), nil
}

// FormatDocument re-indents a document with two spaces and a trailing newline.
func FormatDocument(doc json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return nil, NewMalformedInputError("document is not valid JSON", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
