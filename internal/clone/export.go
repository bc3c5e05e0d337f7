package clone

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteDefinition saves the definition to path. JSON is the default
// format; a .yaml or .yml extension writes YAML instead.
func WriteDefinition(def *RoleDefinition, path string) error {
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = marshalYAML(def)
	} else {
		data, err = json.MarshalIndent(def, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal role definition: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// marshalYAML round-trips through JSON so RawScopes render as
// structured YAML instead of base64 byte blobs.
func marshalYAML(def *RoleDefinition) ([]byte, error) {
	jsonData, err := json.Marshal(def)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// ReadDefinition loads a definition written by WriteDefinition,
// accepting either format by extension.
func ReadDefinition(path string) (*RoleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if isYAMLPath(path) {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", path, err)
		}
	}

	var def RoleDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &def, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
