package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"arcade/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// LoadCatalog parses the shop catalog: the file at path when given,
// otherwise the embedded default.
func LoadCatalog(path string) (*models.Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		raw = data
	}

	catalog := new(models.Catalog)
	if err := yaml.Unmarshal(raw, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return catalog, nil
}
