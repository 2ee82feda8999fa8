// Package template renders the file sets the lifecycle steps feed to
// external tools: infrastructure-as-code configuration, playbook
// inventories, and release artifacts. A template set is a directory of
// .tmpl files; rendering resolves each against the environment's
// values and writes the result, minus the .tmpl suffix, into the
// destination directory.
package template

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/actions"
)

const templateSuffix = ".tmpl"

// Renderer implements actions.Renderer from template sets on disk,
// laid out as <BaseDir>/<set>/....
type Renderer struct {
	// BaseDir is the directory holding one subdirectory per set.
	BaseDir string
}

var _ actions.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer reading sets from baseDir.
func NewRenderer(baseDir string) *Renderer {
	return &Renderer{BaseDir: baseDir}
}

// Render materializes the named set into destDir and returns destDir.
// Referencing a value missing from templateContext is an error rather
// than an empty string: a half-rendered infrastructure file must never
// reach the provisioning tool.
func (r *Renderer) Render(ctx context.Context, set string, templateContext map[string]any, destDir string) (string, error) {
	setDir := filepath.Join(r.BaseDir, set)
	info, err := os.Stat(setDir)
	if err != nil {
		return "", fmt.Errorf("template set %q: %w", set, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("template set %q is not a directory", set)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination %s: %w", destDir, err)
	}

	rendered := 0
	err = filepath.WalkDir(setDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(setDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(filepath.Join(destDir, rel), 0o755)
		}

		target := filepath.Join(destDir, strings.TrimSuffix(rel, templateSuffix))
		if !strings.HasSuffix(rel, templateSuffix) {
			// Non-template files are copied through unchanged.
			return copyFile(path, target)
		}
		if err := renderFile(path, target, templateContext); err != nil {
			return fmt.Errorf("render %s: %w", rel, err)
		}
		rendered++
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("set", set).
		Str("dest", destDir).
		Int("templates", rendered).
		Msg("template set rendered")
	return destDir, nil
}

func renderFile(src, dst string, data map[string]any) error {
	tmpl, err := texttemplate.New(filepath.Base(src)).
		Option("missingkey=error").
		ParseFiles(src)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(out, data); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
