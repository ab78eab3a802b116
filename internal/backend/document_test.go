package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDocumentFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "options.JSON")
	if err := os.WriteFile(good, []byte(`{"interval": "1hour"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadDocumentFile(good)
	if err != nil {
		t.Fatalf("LoadDocumentFile() error = %v", err)
	}
	if string(doc) != `{"interval": "1hour"}` {
		t.Errorf("doc = %s", doc)
	}

	txt := filepath.Join(dir, "options.txt")
	_ = os.WriteFile(txt, []byte(`{}`), 0o644)
	if _, err := LoadDocumentFile(txt); !IsMalformedInput(err) {
		t.Errorf(".txt: error = %v, want MalformedInput", err)
	}

	bad := filepath.Join(dir, "broken.json")
	_ = os.WriteFile(bad, []byte(`{"interval": `), 0o644)
	if _, err := LoadDocumentFile(bad); !IsMalformedInput(err) {
		t.Errorf("invalid JSON: error = %v, want MalformedInput", err)
	}

	if _, err := LoadDocumentFile(filepath.Join(dir, "missing.json")); !IsMalformedInput(err) {
		t.Errorf("missing: error = %v, want MalformedInput", err)
	}
}

func TestFormatDocument(t *testing.T) {
	out, err := FormatDocument([]byte(`{"a":1,"b":[true]}`))
	if err != nil {
		t.Fatalf("FormatDocument() error = %v", err)
	}
	want := "{\n  \"a\": 1,\n  \"b\": [\n    true\n  ]\n}\n"
	if string(out) != want {
		t.Errorf("FormatDocument() = %q, want %q", out, want)
	}

	if _, err := FormatDocument([]byte(`{`)); !IsMalformedInput(err) {
		t.Errorf("error = %v, want MalformedInput", err)
	}
}
