package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/smn/internal/archive"
	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/logger"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: ~/.smn/exports/<prefix>-export-YYYY-MM-DD.zip
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path        string `json:"path"`
	Notes       int    `json:"notes"`
	Collections int    `json:"collections"`
	Folders     int    `json:"folders"`
	ExportedAt  int64  `json:"exported_at"`
}

// Export packs every registered collection into a zip archive. The archive
// is written to a temp file and renamed into place, so an existing file at
// the destination survives a failed export.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	exportTime := now()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, archive.ExportFilename(cfg.ExportPrefix, exportTime))
	}

	// Default paths are validated too; the prefix comes from config.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	stats, err := WriteArchive(ctx, database, file, exportTime)
	if err != nil {
		return nil, err
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path must not be a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	success = true

	logger.L().Info().
		Str("path", exportPath).
		Int("notes", stats.Notes).
		Int("collections", stats.Collections).
		Msg("export finished")

	return &ExportOutput{
		Path:        exportPath,
		Notes:       stats.Notes,
		Collections: stats.Collections,
		Folders:     stats.Folders,
		ExportedAt:  exportTime.UnixMilli(),
	}, nil
}

// WriteArchive packs every registered collection into w. Summaries are
// stamped with exportTime.
func WriteArchive(ctx context.Context, database *sql.DB, w io.Writer, exportTime time.Time) (*archive.PackStats, error) {
	state, err := db.LoadState(database)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	stats, err := archive.Pack(w, archive.InputFromState(state), exportTime)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to write archive: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}
	return stats, nil
}
