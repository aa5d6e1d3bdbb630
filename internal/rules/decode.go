package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a rule-set document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the document format from a file extension. Anything
// that is not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// decode turns a document into generic JSON values. Numbers are kept as
// json.Number so integer checks are exact; YAML input is converted to JSON
// first so both formats are validated by the same code.
func decode(doc []byte, format Format) (any, error) {
	if format == FormatYAML {
		var raw any
		if err := yaml.Unmarshal(doc, &raw); err != nil {
			return nil, fmt.Errorf("Invalid YAML: %v", err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("Invalid YAML: %v", err)
		}
		doc = converted
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("Invalid JSON: %v", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("Invalid JSON: unexpected data after top-level value")
	}
	return out, nil
}
