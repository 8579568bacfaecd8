package maintenance

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/klauspost/compress/gzip"
)

// RotateResult counts what one rotation pass did
type RotateResult struct {
	Compressed int
	Deleted    int
	Truncated  int
	Errors     int
}

// Counts returns the result as a map for the maintenance record
func (r RotateResult) Counts() map[string]int {
	return map[string]int{
		"compressed": r.Compressed,
		"deleted":    r.Deleted,
		"truncated":  r.Truncated,
		"errors":     r.Errors,
	}
}

// RotateLogs walks the log root and applies the rotation policy:
// *.log files older than the compress threshold are gzipped in place,
// *.log.gz archives older than the delete threshold are removed, and
// any live *.log above the size cap is truncated.
func RotateLogs(cfg config.RotateConfig) (RotateResult, error) {
	return rotateLogsAt(cfg, time.Now())
}

// rotateLogsAt is the clock-injected implementation
func rotateLogsAt(cfg config.RotateConfig, now time.Time) (RotateResult, error) {
	logger := log.WithComponent("rotate")
	var result RotateResult

	compressBefore := now.AddDate(0, 0, -cfg.CompressAgeDays)
	deleteBefore := now.AddDate(0, 0, -cfg.DeleteAgeDays)

	err := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("walk error")
			result.Errors++
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Errors++
			return nil
		}

		switch {
		case strings.HasSuffix(path, ".log.gz"):
			if info.ModTime().Before(deleteBefore) {
				if err := os.Remove(path); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("failed to delete archive")
					result.Errors++
					return nil
				}
				logger.Debug().Str("path", path).Msg("deleted archive")
				result.Deleted++
				metrics.LogsDeletedTotal.Inc()
			}

		case strings.HasSuffix(path, ".log"):
			if info.ModTime().Before(compressBefore) {
				if err := compressFile(path, info.ModTime()); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("failed to compress")
					result.Errors++
					return nil
				}
				logger.Debug().Str("path", path).Msg("compressed")
				result.Compressed++
				metrics.LogsCompressedTotal.Inc()
			} else if cfg.MaxSizeBytes > 0 && info.Size() > cfg.MaxSizeBytes {
				if err := os.Truncate(path, 0); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("failed to truncate")
					result.Errors++
					return nil
				}
				logger.Info().Str("path", path).Int64("size", info.Size()).Msg("truncated oversized log")
				result.Truncated++
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk %s: %w", cfg.Root, err)
	}

	logger.Info().
		Int("compressed", result.Compressed).
		Int("deleted", result.Deleted).
		Int("truncated", result.Truncated).
		Int("errors", result.Errors).
		Msg("rotation complete")
	return result, nil
}

// compressFile gzips path to path.gz, carries the mtime over so the
// delete threshold counts from the original write time, and removes
// the original.
func compressFile(path string, mtime time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.Create(gzPath)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		dst.Close()
		os.Remove(gzPath)
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(gzPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(gzPath)
		return err
	}

	if err := os.Chtimes(gzPath, mtime, mtime); err != nil {
		return err
	}
	return os.Remove(path)
}
