package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ruzivolabs/ruzivo/internal/logging"
)

// DefaultBackupCount is how many rotated backups a saved file keeps.
const DefaultBackupCount = 5

// AtomicWrite writes data to path via a temp file in the same
// directory plus rename, so readers never observe a partial file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ruzivo-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	success = true
	return nil
}

// AtomicWriteJSON marshals data as indented JSON and writes it
// atomically.
func AtomicWriteJSON(path string, data any, perm os.FileMode) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return AtomicWrite(path, out, perm)
}

// BackupAndWriteJSON rotates backups of an existing file, then writes
// the new data atomically. A failed backup logs and continues; the
// save itself still happens.
func BackupAndWriteJSON(path string, data any, maxBackups int) error {
	if maxBackups <= 0 {
		maxBackups = DefaultBackupCount
	}
	if _, err := os.Stat(path); err == nil {
		if err := createBackup(path, maxBackups); err != nil {
			logging.L_warn("config: backup failed, continuing with save", "error", err)
		}
	}
	if err := AtomicWriteJSON(path, data, 0600); err != nil {
		return err
	}
	logging.L_debug("config: saved", "path", path)
	return nil
}

func createBackup(path string, maxBackups int) error {
	RotateBackups(path, maxBackups)
	if err := copyFile(path, path+".bak"); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	return nil
}

// RotateBackups shifts .bak.N-1 to .bak.N and .bak to .bak.1, deleting
// the oldest. maxBackups of 1 keeps only .bak itself.
func RotateBackups(path string, maxBackups int) {
	if maxBackups <= 1 {
		return
	}
	base := path + ".bak"
	maxIndex := maxBackups - 1

	oldest := fmt.Sprintf("%s.%d", base, maxIndex)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: remove oldest backup failed", "path", oldest, "error", err)
	}
	for i := maxIndex - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", base, i)
		dst := fmt.Sprintf("%s.%d", base, i+1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			logging.L_trace("config: rotate backup failed", "src", src, "dst", dst, "error", err)
		}
	}
	if err := os.Rename(base, base+".1"); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: rotate .bak failed", "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
