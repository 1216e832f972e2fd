// spotdl implementation of [Fetcher]
//
// Shells out to the spotdl CLI, which searches for the track by metadata and
// downloads + encodes it to the configured audio format.
package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/shared"
)

const spotdlTimeout = 5 * time.Minute

// SpotdlFetcher invokes the external spotdl binary to acquire track audio.
type SpotdlFetcher struct {
	// Bin is the spotdl executable name or path. Defaults to "spotdl".
	Bin string

	// run is the command executor, injectable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSpotdlFetcher creates a fetcher using the spotdl binary on PATH.
func NewSpotdlFetcher() *SpotdlFetcher {
	return &SpotdlFetcher{Bin: "spotdl"}
}

func (f *SpotdlFetcher) executable() string {
	if f.Bin != "" {
		return f.Bin
	}
	return "spotdl"
}

func (f *SpotdlFetcher) exec(ctx context.Context, args ...string) ([]byte, error) {
	if f.run != nil {
		return f.run(ctx, f.executable(), args...)
	}
	return exec.CommandContext(ctx, f.executable(), args...).CombinedOutput()
}

// Fetch downloads and encodes one track into destDir and returns the file path.
//
// spotdl names output files from track metadata, so the newest file with the
// requested extension is taken as the result.
func (f *SpotdlFetcher) Fetch(ctx context.Context, track models.Track, destDir, format string) (string, error) {
	if track.URL == "" {
		return "", fmt.Errorf("%w: track %s has no provider URL", shared.ErrAcquisition, track.ID)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}

	ctx, cancel := context.WithTimeout(ctx, spotdlTimeout)
	defer cancel()

	output, err := f.exec(ctx, track.URL, "--output", destDir, "--format", format)
	if err != nil {
		if strings.Contains(string(output), "No results found") {
			return "", fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.Label())
		}
		return "", fmt.Errorf("%w: spotdl failed for %s: %v", shared.ErrAcquisition, track.Label(), err)
	}

	path, err := newestFile(destDir, "."+format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}
	return path, nil
}

// newestFile returns the most recently modified file in dir with the extension.
func newestFile(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no %s file found after download", ext)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.Before(candidates[j].modTime)
	})
	return candidates[len(candidates)-1].path, nil
}
