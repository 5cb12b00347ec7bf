// Package workspace owns the output tree: resetting it, staging a build
// beside it, and promoting the staged tree once every stage succeeded.
package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/logging"
)

const (
	stageSuffix  = "_stage"
	backupSuffix = ".prev"
)

// Manager performs filesystem operations on output roots.
type Manager struct {
	logger logging.Logger
}

// NewManager creates a workspace manager.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{logger: logger.WithComponent("workspace")}
}

// StagingPath returns the sibling staging root used for finalRoot.
func StagingPath(finalRoot string) string {
	return filepath.Clean(finalRoot) + stageSuffix
}

// Reset deletes root recursively and recreates it with its asset
// subdirectory. A missing root is not an error.
func (m *Manager) Reset(root, assetsDir string) error {
	if err := os.RemoveAll(root); err != nil && !os.IsNotExist(err) {
		return errors.NewFilesystemError(errors.ErrCodeResetFailed, "failed to remove output root", err).
			WithLocation(root, 0, 0)
	}

	assets := filepath.Join(root, assetsDir)
	if err := os.MkdirAll(assets, 0o755); err != nil {
		return errors.NewFilesystemError(errors.ErrCodeResetFailed, "failed to create asset directory", err).
			WithLocation(assets, 0, 0)
	}

	m.logger.Debug(context.Background(), "Reset output root", "root", root, "assets", assets)
	return nil
}

// BeginStaging resets the staging root that sits beside finalRoot and
// returns its path.
func (m *Manager) BeginStaging(finalRoot, assetsDir string) (string, error) {
	stage := StagingPath(finalRoot)
	if err := m.Reset(stage, assetsDir); err != nil {
		return "", err
	}
	m.logger.Debug(context.Background(), "Initialized staging directory", "staging", stage, "final", finalRoot)
	return stage, nil
}

// Publish promotes staging to finalRoot. The previous final root is moved
// aside first and removed once the rename succeeded; if the rename fails
// the previous root is restored.
func (m *Manager) Publish(staging, finalRoot string) error {
	if _, err := os.Stat(staging); err != nil {
		return errors.NewFilesystemError(errors.ErrCodePublishFailed, "staging directory missing", err).
			WithLocation(staging, 0, 0)
	}

	prev := filepath.Clean(finalRoot) + backupSuffix
	if err := os.RemoveAll(prev); err != nil {
		return errors.NewFilesystemError(errors.ErrCodePublishFailed, "failed to remove stale backup", err).
			WithLocation(prev, 0, 0)
	}

	hadPrevious := false
	if _, err := os.Stat(finalRoot); err == nil {
		if err := os.Rename(finalRoot, prev); err != nil {
			return errors.NewFilesystemError(errors.ErrCodePublishFailed, "failed to back up existing output", err).
				WithLocation(finalRoot, 0, 0)
		}
		hadPrevious = true
	}

	if err := os.Rename(staging, finalRoot); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(prev, finalRoot); restoreErr != nil {
				m.logger.Error(context.Background(), restoreErr, "Failed to restore previous output", "backup", prev)
			}
		}
		return errors.NewFilesystemError(errors.ErrCodePublishFailed, "failed to promote staging directory", err).
			WithLocation(staging, 0, 0)
	}

	if hadPrevious {
		if err := os.RemoveAll(prev); err != nil {
			m.logger.Warn(context.Background(), err, "Failed to remove previous output", "backup", prev)
		}
	}

	m.logger.Info(context.Background(), "Promoted staging directory", "output", finalRoot)
	return nil
}

// Abort removes a staging root after a failed build. Errors are logged.
func (m *Manager) Abort(staging string) {
	if staging == "" {
		return
	}
	if err := os.RemoveAll(staging); err != nil {
		m.logger.Warn(context.Background(), err, "Failed to remove staging directory after abort", "staging", staging)
		return
	}
	m.logger.Debug(context.Background(), "Removed staging directory after abort", "staging", staging)
}

// CopyPassthrough copies the named root-level files from srcDir into
// dstRoot. Names that do not exist in srcDir are skipped. It returns the
// names that were copied.
func (m *Manager) CopyPassthrough(srcDir, dstRoot string, names []string) ([]string, error) {
	copied := make([]string, 0, len(names))
	for _, name := range names {
		src := filepath.Join(srcDir, name)
		info, err := os.Stat(src)
		if os.IsNotExist(err) {
			m.logger.Debug(context.Background(), "Passthrough file absent", "file", src)
			continue
		}
		if err != nil {
			return copied, errors.ErrReadFailed(src, err)
		}
		if info.IsDir() {
			return copied, errors.NewValidationError(errors.ErrCodeReadFailed, "passthrough entry is a directory").
				WithLocation(src, 0, 0)
		}

		if err := CopyFile(src, filepath.Join(dstRoot, name)); err != nil {
			return copied, err
		}
		copied = append(copied, name)
	}
	return copied, nil
}

// CleanDir removes dir if it exists.
func (m *Manager) CleanDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.NewFilesystemError(errors.ErrCodeResetFailed, "failed to remove directory", err).
			WithLocation(dir, 0, 0)
	}
	m.logger.Debug(context.Background(), "Removed directory", "dir", dir)
	return nil
}

// CopyFile copies src to dst, creating dst's parent directories and
// keeping src's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.ErrReadFailed(src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.ErrReadFailed(src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.ErrWriteFailed(dst, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.ErrWriteFailed(dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.ErrWriteFailed(dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.ErrWriteFailed(dst, err)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.ErrWriteFailed(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.ErrWriteFailed(path, err)
	}
	return nil
}

// Files lists the regular files under root as slash-separated relative
// paths in lexical order.
func Files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	return files, nil
}
