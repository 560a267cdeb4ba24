package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"assetd/internal/common/fsutil"
	"assetd/pkg/types"
)

// LoadBundles reads a keyed bundle configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml. The mapping is validated before return.
func LoadBundles(path string) (map[string]types.KeyConfig, error) {
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	var bundles map[string]types.KeyConfig
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &bundles); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &bundles); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &bundles); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported bundles extension: %s", ext)
	}
	if err := ValidateBundles(bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

// ValidateBundles checks structural rules the engine assumes:
// an entry uses either keys alone or files (optionally with deps); every
// referenced name must exist; deps/keys references must not form a cycle.
func ValidateBundles(bundles map[string]types.KeyConfig) error {
	for name, e := range bundles {
		if len(e.Keys) > 0 && (len(e.Files) > 0 || len(e.Deps) > 0) {
			return fmt.Errorf("bundle %q: keys is mutually exclusive with files and deps", name)
		}
		if len(e.Keys) == 0 && len(e.Files) == 0 && len(e.Deps) == 0 {
			return fmt.Errorf("bundle %q: empty entry", name)
		}
		for _, ref := range append(append([]string{}, e.Deps...), e.Keys...) {
			if _, ok := bundles[ref]; !ok {
				return fmt.Errorf("bundle %q references unknown entry %q", name, ref)
			}
		}
	}
	return detectCycles(bundles)
}

func detectCycles(bundles map[string]types.KeyConfig) error {
	const (
		unseen = 0
		onPath = 1
		done   = 2
	)
	state := make(map[string]int, len(bundles))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case onPath:
			return fmt.Errorf("bundle dependency cycle: %s", strings.Join(append(path, name), " -> "))
		}
		state[name] = onPath
		e := bundles[name]
		for _, ref := range append(append([]string{}, e.Deps...), e.Keys...) {
			if err := visit(ref, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for name := range bundles {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}
