package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// loadFromPaths reads .rego rule files from files or directories.
// Unreadable files inside a directory are logged and skipped; a path
// given directly must load.
func loadFromPaths(ctx context.Context, logger zerolog.Logger, paths []string) ([]Rule, error) {
	var rules []Rule
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat policy path: %w", err)
		}
		if info.IsDir() {
			dirRules, err := loadFromDirectory(logger, path)
			if err != nil {
				return nil, err
			}
			rules = append(rules, dirRules...)
			continue
		}
		rule, err := loadFromFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func loadFromDirectory(logger zerolog.Logger, dir string) ([]Rule, error) {
	var rules []Rule
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		rule, err := loadFromFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable policy file")
			return nil
		}
		rules = append(rules, *rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policy directory %s: %w", dir, err)
	}
	return rules, nil
}

// loadFromFile builds a Rule from a .rego file. Metadata comes from
// comment directives in the file header:
//
//	# description: what the rule enforces
//	# severity: warning|error|critical
//
// Absent directives default to error severity with the file name as
// the rule name.
func loadFromFile(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	rule := &Rule{
		Name:     strings.TrimSuffix(filepath.Base(path), ".rego"),
		Severity: SeverityError,
		Enabled:  true,
		Rego:     string(data),
		Source:   path,
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if trimmed != "" {
				break
			}
			continue
		}
		directive := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		switch {
		case strings.HasPrefix(directive, "description:"):
			rule.Description = strings.TrimSpace(strings.TrimPrefix(directive, "description:"))
		case strings.HasPrefix(directive, "severity:"):
			sev := Severity(strings.TrimSpace(strings.TrimPrefix(directive, "severity:")))
			switch sev {
			case SeverityWarning, SeverityError, SeverityCritical:
				rule.Severity = sev
			default:
				return nil, fmt.Errorf("%s: unknown severity %q", path, sev)
			}
		}
	}

	return rule, nil
}
