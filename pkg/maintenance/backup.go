package maintenance

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
	"github.com/klauspost/compress/gzip"
)

// BackupResult describes what one backup run produced
type BackupResult struct {
	SQLPath    string
	ConfigPath string
	SizeBytes  int64
	Pruned     int
}

// RunBackup dumps the stats database and archives the config trees,
// then prunes old archives. A mysqldump failure skips the database
// half but config archiving still runs; the error is returned after
// both halves had their chance.
func RunBackup(ctx context.Context, cfg config.BackupConfig) (BackupResult, error) {
	return runBackupAt(ctx, cfg, time.Now())
}

func runBackupAt(ctx context.Context, cfg config.BackupConfig, now time.Time) (BackupResult, error) {
	logger := log.WithComponent("backup")
	var result BackupResult
	var firstErr error

	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return result, fmt.Errorf("failed to create backup dir: %w", err)
	}

	stamp := now.Format("20060102")

	// Database dump
	if cfg.Database != "" {
		sqlPath := filepath.Join(cfg.Dir, fmt.Sprintf("%s-%s.sql.gz", cfg.Database, stamp))
		if err := dumpDatabase(ctx, cfg.Mysqldump, cfg.Database, sqlPath); err != nil {
			logger.Error().Err(err).Str("database", cfg.Database).Msg("database dump failed")
			firstErr = err
		} else {
			result.SQLPath = sqlPath
			logger.Info().Str("path", sqlPath).Msg("database dumped")
		}
	}

	// Config archive
	if len(cfg.ConfigDirs) > 0 {
		tarPath := filepath.Join(cfg.Dir, fmt.Sprintf("configs-%s.tar.gz", stamp))
		if err := archiveDirs(cfg.ConfigDirs, tarPath); err != nil {
			logger.Error().Err(err).Msg("config archive failed")
			if firstErr == nil {
				firstErr = err
			}
		} else {
			result.ConfigPath = tarPath
			logger.Info().Str("path", tarPath).Msg("configs archived")
		}
	}

	for _, path := range []string{result.SQLPath, result.ConfigPath} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			result.SizeBytes += info.Size()
		}
	}
	if result.SizeBytes > 0 {
		metrics.BackupSizeBytes.Set(float64(result.SizeBytes))
	}

	pruned, err := pruneArchives(cfg.Dir, cfg.PruneAgeDays, now)
	if err != nil {
		logger.Warn().Err(err).Msg("prune failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	result.Pruned = pruned

	return result, firstErr
}

// dumpDatabase runs mysqldump and gzips its stdout into outPath.
// Credentials come from ~/.my.cnf, same as the cron job always has.
func dumpDatabase(ctx context.Context, mysqldump, database, outPath string) error {
	cmd := exec.CommandContext(ctx, mysqldump, "--single-transaction", database)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	gz := gzip.NewWriter(out)

	if err := cmd.Start(); err != nil {
		gz.Close()
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("failed to start mysqldump: %w", err)
	}

	_, copyErr := io.Copy(gz, stdout)
	waitErr := cmd.Wait()

	if err := gz.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = err
	}

	if waitErr != nil {
		os.Remove(outPath)
		return fmt.Errorf("mysqldump failed: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	if copyErr != nil {
		os.Remove(outPath)
		return fmt.Errorf("failed to write dump: %w", copyErr)
	}
	return nil
}

// archiveDirs writes the given directories into one tar.gz. Paths
// inside the archive are rooted at each directory's base name.
func archiveDirs(dirs []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	var archiveErr error
	for _, dir := range dirs {
		if err := addDirToTar(tw, dir); err != nil {
			archiveErr = err
			break
		}
	}

	if err := tw.Close(); err != nil && archiveErr == nil {
		archiveErr = err
	}
	if err := gz.Close(); err != nil && archiveErr == nil {
		archiveErr = err
	}
	if err := out.Close(); err != nil && archiveErr == nil {
		archiveErr = err
	}

	if archiveErr != nil {
		os.Remove(outPath)
		return archiveErr
	}
	return nil
}

func addDirToTar(tw *tar.Writer, dir string) error {
	base := filepath.Base(dir)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(base, rel))

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}

// pruneArchives deletes backup archives older than the age threshold
func pruneArchives(dir string, pruneAgeDays int, now time.Time) (int, error) {
	if pruneAgeDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -pruneAgeDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup dir: %w", err)
	}

	pruned := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql.gz") && !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return pruned, err
			}
			pruned++
			metrics.BackupsPrunedTotal.Inc()
		}
	}
	return pruned, nil
}
