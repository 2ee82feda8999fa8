package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed defaults
var defaultSets embed.FS

// EnsureDefaults populates baseDir with the built-in template sets.
// Existing files are left alone so operator customizations survive
// upgrades; only missing files are written.
func EnsureDefaults(baseDir string) error {
	sub, err := fs.Sub(defaultSets, "defaults")
	if err != nil {
		return err
	}
	return fs.WalkDir(sub, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(baseDir, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if _, err := os.Stat(target); err == nil {
			return nil
		}
		data, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write default template %s: %w", path, err)
		}
		return nil
	})
}
