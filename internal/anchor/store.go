// Package anchor owns the three persisted artifacts of a deployment: the
// shared main pf configuration, the anchor ruleset file, and the pre-mutation
// backup. All filesystem knowledge lives here; the lifecycle controller only
// sequences these operations.
package anchor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/limawan/internal/logging"
)

// ErrNoBackup is returned when a restore is requested and no backup exists.
// This only arises from operator tampering between calls.
var ErrNoBackup = errors.New("no backup to restore from")

// Store manages the persisted state of one named anchor.
type Store struct {
	mainConfigPath string
	anchorDir      string
	anchorName     string
	backupPath     string
	log            *logging.Logger
}

// New creates a store for the given anchor and paths.
func New(mainConfigPath, anchorDir, anchorName, backupPath string) *Store {
	return &Store{
		mainConfigPath: mainConfigPath,
		anchorDir:      anchorDir,
		anchorName:     anchorName,
		backupPath:     backupPath,
		log:            logging.WithComponent("anchor"),
	}
}

// MainConfigPath returns the path of the shared pf configuration.
func (s *Store) MainConfigPath() string {
	return s.mainConfigPath
}

// RulesetPath returns the path of the anchor ruleset file.
func (s *Store) RulesetPath() string {
	return filepath.Join(s.anchorDir, s.anchorName)
}

// BackupPath returns the path of the backup file.
func (s *Store) BackupPath() string {
	return s.backupPath
}

// startMarker opens the managed reference block. Removal matches exactly
// this line and the following closing brace, so unrelated pf.conf content
// and formatting are never touched.
func (s *Store) startMarker() string {
	return fmt.Sprintf("anchor %q {", s.anchorName)
}

// referenceBlock is the block appended to the main configuration.
func (s *Store) referenceBlock() string {
	return fmt.Sprintf("%s\n\tload anchor %q from %q\n}\n", s.startMarker(), s.anchorName, s.RulesetPath())
}

// ReadMainConfig returns the current main configuration text. A missing
// file reads as empty (first-run case).
func (s *Store) ReadMainConfig() (string, error) {
	data, err := os.ReadFile(s.mainConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", s.mainConfigPath, err)
	}
	return string(data), nil
}

// Backup snapshots the main configuration before the first mutation of a
// setup sequence. An existing backup from an unfinished prior run is
// preserved, not overwritten, so the oldest known-good state is never lost.
// A missing main configuration is snapshotted as an empty file.
func (s *Store) Backup() error {
	if s.HasBackup() {
		s.log.Debug("backup already present, preserving", "path", s.backupPath)
		return nil
	}

	data, err := os.ReadFile(s.mainConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", s.mainConfigPath, err)
		}
		data = nil
	}

	if err := os.WriteFile(s.backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write backup %s: %w", s.backupPath, err)
	}
	s.log.Debug("backup created", "path", s.backupPath, "bytes", len(data))
	return nil
}

// HasBackup reports whether a backup file exists.
func (s *Store) HasBackup() bool {
	_, err := os.Stat(s.backupPath)
	return err == nil
}

// WriteRuleset writes the anchor ruleset file, creating the anchor
// directory if missing.
func (s *Store) WriteRuleset(text string) error {
	if err := os.MkdirAll(s.anchorDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.anchorDir, err)
	}
	path := s.RulesetPath()
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RulesetFileExists reports whether the anchor ruleset file exists.
func (s *Store) RulesetFileExists() bool {
	_, err := os.Stat(s.RulesetPath())
	return err == nil
}

// ReadRuleset returns the anchor ruleset file content.
func (s *Store) ReadRuleset() (string, error) {
	data, err := os.ReadFile(s.RulesetPath())
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.RulesetPath(), err)
	}
	return string(data), nil
}

// IsReferenced reports whether the main configuration contains the managed
// reference block. Detection is a text search for the start marker, so
// unrelated formatting changes elsewhere in the file are tolerated.
func (s *Store) IsReferenced() (bool, error) {
	content, err := s.ReadMainConfig()
	if err != nil {
		return false, err
	}
	return containsMarker(content, s.startMarker()), nil
}

// EnsureReferenced appends the reference block to the main configuration if
// it is not already present. Returns true when the file was changed.
// Creates the file if absent.
func (s *Store) EnsureReferenced() (bool, error) {
	content, err := s.ReadMainConfig()
	if err != nil {
		return false, err
	}

	if containsMarker(content, s.startMarker()) {
		return false, nil
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	if content != "" {
		b.WriteString("\n")
	}
	b.WriteString(s.referenceBlock())

	if err := os.WriteFile(s.mainConfigPath, []byte(b.String()), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", s.mainConfigPath, err)
	}
	s.log.Debug("anchor reference added", "config", s.mainConfigPath)
	return true, nil
}

// RemoveReference removes exactly the managed reference block, leaving all
// unrelated content untouched. Blank lines immediately around the removed
// block are collapsed so repeated setup/teardown cycles do not accumulate
// gaps. Removing an absent reference is a no-op.
func (s *Store) RemoveReference() error {
	content, err := s.ReadMainConfig()
	if err != nil {
		return err
	}

	lines := strings.Split(content, "\n")
	marker := s.startMarker()

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == marker {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}

	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "}" {
			end = i
			break
		}
	}
	if end == -1 {
		return fmt.Errorf("unterminated anchor block in %s", s.mainConfigPath)
	}

	// Absorb one blank line adjacent to the block (the separator added by
	// EnsureReferenced).
	if start > 0 && strings.TrimSpace(lines[start-1]) == "" {
		start--
	} else if end+1 < len(lines) && strings.TrimSpace(lines[end+1]) == "" {
		end++
	}

	remaining := append(append([]string{}, lines[:start]...), lines[end+1:]...)
	out := strings.Join(remaining, "\n")

	if err := os.WriteFile(s.mainConfigPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.mainConfigPath, err)
	}
	s.log.Debug("anchor reference removed", "config", s.mainConfigPath)
	return nil
}

// DeleteRulesetFile deletes the anchor ruleset file, then removes the
// anchor directory only when it is left empty. A shared directory with
// other anchors is never deleted. Deleting an absent file is a no-op.
func (s *Store) DeleteRulesetFile() error {
	path := s.RulesetPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	entries, err := os.ReadDir(s.anchorDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", s.anchorDir, err)
	}
	if len(entries) == 0 {
		if err := os.Remove(s.anchorDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", s.anchorDir, err)
		}
		s.log.Debug("empty anchor directory removed", "dir", s.anchorDir)
	}
	return nil
}

// RestoreFromBackup replaces the main configuration with the backup taken
// at the start of the mutation sequence.
func (s *Store) RestoreFromBackup() error {
	data, err := os.ReadFile(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoBackup
		}
		return fmt.Errorf("failed to read backup %s: %w", s.backupPath, err)
	}
	if err := os.WriteFile(s.mainConfigPath, data, 0644); err != nil {
		return fmt.Errorf("failed to restore %s: %w", s.mainConfigPath, err)
	}
	s.log.Info("main configuration restored from backup", "config", s.mainConfigPath)
	return nil
}

// DeleteBackup removes the backup file. Deleting an absent backup is a no-op.
func (s *Store) DeleteBackup() error {
	if err := os.Remove(s.backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup %s: %w", s.backupPath, err)
	}
	return nil
}

// DiffFromBackup returns a unified diff between the backup and the current
// main configuration, for operator inspection.
func (s *Store) DiffFromBackup() (string, error) {
	if !s.HasBackup() {
		return "", ErrNoBackup
	}
	backup, err := os.ReadFile(s.backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to read backup %s: %w", s.backupPath, err)
	}
	current, err := s.ReadMainConfig()
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(backup)),
		B:        difflib.SplitLines(current),
		FromFile: s.backupPath,
		ToFile:   s.mainConfigPath,
		Context:  3,
	})
}

// containsMarker reports whether any line of content equals marker once
// trimmed. A plain substring search would also match commented-out copies.
func containsMarker(content, marker string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == marker {
			return true
		}
	}
	return false
}
