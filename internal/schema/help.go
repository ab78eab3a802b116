package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FallbackHelp is shown for fields nobody has documented.
const FallbackHelp = "No help available for this field yet. Please check the documentation."

// HelpCatalog maps category → field name → help text.
type HelpCatalog map[string]map[string]string

// ParseHelp decodes a help catalog.
func ParseHelp(data []byte) (HelpCatalog, error) {
	var h HelpCatalog
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode help catalog: %w", err)
	}
	return h, nil
}

// LoadHelpFile reads a help catalog from disk.
func LoadHelpFile(path string) (HelpCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read help catalog: %w", err)
	}
	return ParseHelp(data)
}

// Text returns the help for a field: the catalog entry, then the schema
// description, then FallbackHelp.
func (h HelpCatalog) Text(f Field) string {
	if byField, ok := h[f.Category()]; ok {
		if text := strings.TrimSpace(byField[f.Name()]); text != "" {
			return text
		}
	}
	if text := strings.TrimSpace(f.Description); text != "" {
		return text
	}
	return FallbackHelp
}

// FieldTitle turns a field name into a heading: "max_gap" → "Max Gap".
// Letters after the first of each word keep their case, so units like
// "kWh" survive.
func FieldTitle(name string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.ReplaceAll(name, "_", " "))
}
