// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials kept outside the configuration file.
// A secrets directory holds one file per credential; the file name is the
// key and the trimmed contents are the value.
package secrets

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/logging"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets"

// PublishTokenKey names the file holding the sink's bearer token.
const PublishTokenKey = "publish-token"

// Secrets maps credential names to values.
type Secrets map[string]string

// Load reads the credentials in dir. A missing directory yields an empty
// set. Dotfiles and subdirectories are ignored, as are empty files.
// A file that cannot be read is skipped with a warning, and a file readable
// by group or others is loaded but warned about.
func Load(dir string, log *zap.Logger) (Secrets, error) {
	log = logging.OrNop(log).With(zap.String(logging.FieldComponent, "secrets"))

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading secrets directory %s", dir)
	}

	s := Secrets{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readValue(filepath.Join(dir, name), log)
		if err != nil {
			log.Warn("skipping unreadable secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value != "" {
			s[name] = value
		}
	}
	return s, nil
}

func readValue(path string, log *zap.Logger) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Mode().Perm()&0o077 != 0 {
		log.Warn("secret file is readable by other users",
			zap.String("path", path),
			zap.String("mode", info.Mode().Perm().String()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// PublishToken returns the first non-empty override, falling back to the
// publish-token file. Callers pass the flag value before the config value.
func (s Secrets) PublishToken(overrides ...string) string {
	return First(append(overrides, s[PublishTokenKey])...)
}

// First returns the first non-empty value.
func First(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
