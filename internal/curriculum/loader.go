package curriculum

import (
	_ "embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the built-in subject table.
func DefaultCatalog() (Catalog, error) {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		return Catalog{}, fmt.Errorf("parsing default catalog: %w", err)
	}
	return c, nil
}

// LoadCatalogFile reads and parses a single catalog file.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// LoadCatalogDir merges every YAML catalog under rootDir, in lexical path order.
func LoadCatalogDir(rootDir string) (Catalog, error) {
	var c Catalog
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		part, err := LoadCatalogFile(path)
		if err != nil {
			return err
		}
		if err := c.Merge(part); err != nil {
			return fmt.Errorf("merging %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return Catalog{}, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum catalog loaded", "dir", rootDir, "subjects", len(c.Subjects))
	return c, nil
}

// LoadCatalog loads from path, which may be a file or a directory.
// An empty path selects the built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	info, err := os.Stat(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("loading curriculum: %w", err)
	}
	if info.IsDir() {
		return LoadCatalogDir(path)
	}
	return LoadCatalogFile(path)
}
