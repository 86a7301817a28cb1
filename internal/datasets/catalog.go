package datasets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	apperrors "covidetl/internal/errors"
	"covidetl/internal/operations"
)

// Catalog is the YAML document read by LoadCatalog
type Catalog struct {
	Datasets []operations.DatasetSpec `yaml:"datasets"`
}

// LoadCatalog reads dataset definitions from a YAML file. Every entry is
// validated; the first invalid one fails the whole catalog.
func LoadCatalog(path string) ([]operations.DatasetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.TypeConfig, "catalog", "failed to read catalog "+path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a catalog document
func ParseCatalog(data []byte) ([]operations.DatasetSpec, error) {
	var catalog Catalog
	if err := yaml.UnmarshalStrict(data, &catalog); err != nil {
		return nil, apperrors.New(apperrors.TypeConfig, "catalog", "malformed catalog", err)
	}

	seen := make(map[string]bool, len(catalog.Datasets))
	for i, spec := range catalog.Datasets {
		if err := spec.Validate(); err != nil {
			return nil, apperrors.New(apperrors.TypeConfig, "catalog",
				fmt.Sprintf("dataset %d (%q) is invalid", i, spec.Name), err)
		}
		if seen[spec.Name] {
			return nil, apperrors.New(apperrors.TypeConfig, "catalog",
				fmt.Sprintf("dataset %q is defined twice", spec.Name), nil)
		}
		seen[spec.Name] = true
	}
	return catalog.Datasets, nil
}

// Register adds specs to registry, stopping at the first conflict
func Register(registry *operations.Registry, specs []operations.DatasetSpec) error {
	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
