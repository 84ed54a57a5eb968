package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/repocache-go/internal/domain"
)

// LoadSeedFile reads a list of local repository registrations from a
// YAML or JSON file (chosen by extension). Seed files let users
// register working trees the scanner would not find on its own.
func LoadSeedFile(path string) ([]domain.LocalRepo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data, filepath.Ext(path))
}

// ParseSeed parses seed records from raw bytes
func ParseSeed(data []byte, ext string) ([]domain.LocalRepo, error) {
	var repos []domain.LocalRepo

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &repos); err != nil {
			return nil, fmt.Errorf("parsing seed YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &repos); err != nil {
			return nil, fmt.Errorf("parsing seed JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed file extension: %s", ext)
	}

	for i, r := range repos {
		if r.Path == "" {
			return nil, fmt.Errorf("seed entry %d: path is required", i)
		}
		if r.RemoteURL == "" {
			return nil, fmt.Errorf("seed entry %d: url is required", i)
		}
	}
	return repos, nil
}
