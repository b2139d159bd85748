// Package fileutil provides file utilities with tmp+mv write semantics.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteTmpThenMove writes a file through a temp path in the same directory
// and renames it into place, so a crash mid-write never leaves a truncated
// file at outPath.
func WriteTmpThenMove(outPath string, writeFunc func(tmpPath string) error) error {
	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := filepath.Join(outDir, filepath.Base(outPath)+".tmp")

	if err := writeFunc(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}

	return nil
}

// syncFile opens, syncs, and closes a file.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = f.Sync()
	f.Close()
	return err
}
