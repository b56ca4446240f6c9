package config

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path by first writing to a sibling
// temp file and renaming it into place, so a crash or concurrent
// reader never observes a partially written profile catalog, settings
// file, or session snapshot. Permissions are 0600: these files may
// carry connection details a multi-user host shouldn't expose.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// expandTilde resolves a leading "~" or "~/" in p against the current
// user's home directory, matching the CLI's config-dir argument.
func expandTilde(p string) (string, error) {
	if p == "~" {
		return os.UserHomeDir()
	}
	if len(p) >= 2 && p[0] == '~' && p[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
