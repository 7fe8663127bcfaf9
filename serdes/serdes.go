// Package serdes serializes arbitrary object graphs to a structured text
// form (XML, JSON, YAML, or TOML) or a compact binary form, for persistence
// or transport. It is a thin facade over the standard codecs and is usable
// independently of the settings provider.
package serdes

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a serialization form.
type Format string

const (
	XML    Format = "xml"
	JSON   Format = "json"
	YAML   Format = "yaml"
	TOML   Format = "toml"
	Binary Format = "binary" // encoding/gob
)

// Marshal renders v in the given format.
func Marshal(v any, format Format) ([]byte, error) {
	switch format {
	case XML:
		data, err := xml.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T to XML: %w", v, err)
		}
		return data, nil
	case JSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T to JSON: %w", v, err)
		}
		return data, nil
	case YAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T to YAML: %w", v, err)
		}
		return data, nil
	case TOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("failed to marshal %T to TOML: %w", v, err)
		}
		return buf.Bytes(), nil
	case Binary:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode %T to binary: %w", v, err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown serialization format %q", format)
	}
}

// Unmarshal reconstructs an object of v's type from data in the given
// format. v must be a non-nil pointer.
func Unmarshal(data []byte, v any, format Format) error {
	switch format {
	case XML:
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal XML into %T: %w", v, err)
		}
	case JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal JSON into %T: %w", v, err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal YAML into %T: %w", v, err)
		}
	case TOML:
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to unmarshal TOML into %T: %w", v, err)
		}
	case Binary:
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
			return fmt.Errorf("failed to decode binary into %T: %w", v, err)
		}
	default:
		return fmt.Errorf("unknown serialization format %q", format)
	}
	return nil
}

// Detect determines a format from the file extension, falling back to
// content sniffing. The empty Format is returned when nothing matches.
func Detect(path string, data []byte) Format {
	if f := detectExtension(path); f != "" {
		return f
	}
	return detectContent(data)
}

// detectExtension determines a format from the file extension.
func detectExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".config":
		return XML
	case ".json":
		return JSON
	case ".yaml", ".yml":
		return YAML
	case ".toml", ".tml":
		return TOML
	case ".bin", ".gob":
		return Binary
	default:
		return ""
	}
}

// detectContent attempts to detect a text format by parsing.
func detectContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return XML
	}

	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return JSON
	}

	// Try YAML (superset of JSON, so check after JSON)
	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return YAML
	}

	// Try TOML last
	var tomlTest any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return TOML
	}

	return ""
}

// Save marshals v and writes it to path atomically, inferring the format
// from the extension when format is empty.
func Save(path string, v any, format Format) error {
	if format == "" {
		if format = detectExtension(path); format == "" {
			return fmt.Errorf("unable to determine serialization format for '%s'", path)
		}
	}

	data, err := Marshal(v, format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// Load reads path and unmarshals it into v, inferring the format from the
// path and content when format is empty.
func Load(path string, v any, format Format) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}
	if format == "" {
		if format = Detect(path, data); format == "" {
			return fmt.Errorf("unable to determine serialization format for '%s'", path)
		}
	}
	return Unmarshal(data, v, format)
}
