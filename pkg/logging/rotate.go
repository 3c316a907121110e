package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RotateIfNeeded rotates the log file once it exceeds maxSize bytes.
// The current file is renamed to a timestamped backup and reopened; at
// most keepBackups backups are retained, oldest pruned first.
//
// The logger mutex is held across the swap so concurrent writers never
// see a closed file; it is released before logging the outcome.
func (l *Logger) RotateIfNeeded(maxSize int64, keepBackups int) error {
	l.mu.Lock()

	if l.logFile == nil {
		l.mu.Unlock()
		return nil
	}

	info, err := l.logFile.Stat()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if info.Size() <= maxSize {
		l.mu.Unlock()
		return nil
	}

	oldPath := l.logFile.Name()
	l.logFile.Close()

	timestamp := time.Now().Format("20060102-150405")
	backupPath := oldPath + "." + timestamp
	if err := os.Rename(oldPath, backupPath); err != nil {
		l.mu.Unlock()
		return err
	}

	newFile, err := os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.mu.Unlock()
		return err
	}

	l.logFile = newFile
	l.output = io.MultiWriter(newFile, os.Stdout)
	l.mu.Unlock()

	if err := pruneBackups(oldPath, keepBackups); err != nil {
		l.Warn(fmt.Sprintf("Failed to prune old log backups: %v", err))
	}

	l.Info(fmt.Sprintf("Log rotated: %s -> %s", oldPath, backupPath))
	return nil
}

// pruneBackups removes the oldest "<path>.<timestamp>" backups beyond keep
func pruneBackups(path string, keep int) error {
	if keep <= 0 {
		return nil
	}

	matches, err := backupFiles(path)
	if err != nil {
		return err
	}
	if len(matches) <= keep {
		return nil
	}

	// Timestamped suffixes sort chronologically
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}

func backupFiles(path string) ([]string, error) {
	dir := filepath.Dir(path)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var matches []string
	prefix := filepath.Base(path) + "."
	for _, e := range dirEntries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}
	return matches, nil
}
