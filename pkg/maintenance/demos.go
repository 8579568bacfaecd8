package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/afraznein/ktpfleet/pkg/config"
	"github.com/afraznein/ktpfleet/pkg/log"
	"github.com/afraznein/ktpfleet/pkg/metrics"
)

// Demo filename patterns, first match wins.
//
// Match demos look like ktp_1737990000-ATL1-1737990123.5-dod_avalanche.dem:
// a recording type, two HLTV timestamps, the recording host tag, and
// the map name. HLTV auto-recordings drop the host tag.
var (
	demoPattern = regexp.MustCompile(
		`^(?P<type>[a-z]+)_(?P<ts1>\d+)-(?P<host>[A-Z0-9]+)-(?P<ts2>[\d.]+)-(?P<map>[a-z0-9_]+)\.dem$`)
	autoDemoPattern = regexp.MustCompile(
		`^auto-(?P<ts>\d+)-(?P<map>[a-z0-9_]+)\.dem$`)
)

// DemoResult counts what one organizer pass did
type DemoResult struct {
	Moved   int
	Skipped int
	Errors  int
}

// Counts returns the result as a map for the maintenance record
func (r DemoResult) Counts() map[string]int {
	return map[string]int{
		"moved":   r.Moved,
		"skipped": r.Skipped,
		"errors":  r.Errors,
	}
}

// demoDest classifies a demo filename into its host and type, or
// reports no match. fallbackHost names the recording host for HLTV
// auto-recordings, whose filenames don't carry one; without it an
// auto-recording has no destination and stays put.
func demoDest(name, fallbackHost string) (host, demoType string, ok bool) {
	if m := demoPattern.FindStringSubmatch(name); m != nil {
		return m[demoPattern.SubexpIndex("host")], m[demoPattern.SubexpIndex("type")], true
	}
	if autoDemoPattern.MatchString(name) && fallbackHost != "" {
		return strings.ToUpper(fallbackHost), "auto", true
	}
	return "", "", false
}

// OrganizeDemos files .dem recordings from the root directory into
// <dest>/<HOST>/<type>/. Files matching neither pattern stay where
// they are.
func OrganizeDemos(cfg config.DemosConfig, fallbackHost string) (DemoResult, error) {
	logger := log.WithComponent("demos")
	var result DemoResult

	entries, err := os.ReadDir(cfg.Root)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", cfg.Root, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dem") {
			continue
		}

		host, demoType, ok := demoDest(entry.Name(), fallbackHost)
		if !ok {
			logger.Debug().Str("file", entry.Name()).Msg("no pattern match, leaving in place")
			result.Skipped++
			continue
		}

		destDir := filepath.Join(cfg.Dest, host, demoType)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			logger.Warn().Err(err).Str("dir", destDir).Msg("failed to create destination")
			result.Errors++
			continue
		}

		src := filepath.Join(cfg.Root, entry.Name())
		dst := collisionFree(filepath.Join(destDir, entry.Name()))
		if err := os.Rename(src, dst); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to move demo")
			result.Errors++
			continue
		}

		logger.Debug().Str("file", entry.Name()).Str("dest", dst).Msg("filed demo")
		result.Moved++
		metrics.DemosMovedTotal.Inc()
	}

	logger.Info().
		Int("moved", result.Moved).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Msg("demo organization complete")
	return result, nil
}

// collisionFree returns path, or path with a numeric suffix before the
// extension when the destination already exists.
func collisionFree(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
