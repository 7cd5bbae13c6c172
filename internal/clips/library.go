package clips

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Library holds the audio tracks eligible for a playlist
type Library struct {
	clips []*Clip
}

// NewLibrary creates a library from already decoded clips
func NewLibrary(clips ...*Clip) *Library {
	l := &Library{clips: make([]*Clip, 0, len(clips))}
	for _, c := range clips {
		l.Add(c)
	}
	return l
}

// Add appends a clip to the library
func (l *Library) Add(clip *Clip) {
	l.clips = append(l.clips, clip)
}

// Get retrieves a clip by path
func (l *Library) Get(path string) *Clip {
	for _, clip := range l.clips {
		if clip.Path == path {
			return clip
		}
	}
	return nil
}

// All returns all clips in library order
func (l *Library) All() []*Clip {
	return l.clips
}

// Len reports the number of clips
func (l *Library) Len() int {
	return len(l.clips)
}

// ScanOptions configures a library scan
type ScanOptions struct {
	Dir         string
	Ext         string
	// IgnoreCase also accepts Ext in any letter case (".MP3")
	IgnoreCase  bool
	Concurrency int
}

// Scan lists Dir, keeps files whose extension matches Ext and decodes them.
// Files are ordered by name and decoded concurrently, but the library order
// never depends on decode scheduling. A file that fails to decode is logged
// and left out; only cancellation aborts the scan.
func Scan(ctx context.Context, logger zerolog.Logger, dec Decoder, opts ScanOptions) (*Library, error) {
	paths, err := ListFiles(opts.Dir, opts.Ext, opts.IgnoreCase)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("dir", opts.Dir).
		Str("ext", opts.Ext).
		Int("matches", len(paths)).
		Msg("scanning library")

	decoded := make([]*Clip, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, path := range paths {
		g.Go(func() error {
			clip, err := dec.Decode(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn().Err(err).Str("path", path).Msg("skipping undecodable track")
				return nil
			}
			decoded[i] = clip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	lib := NewLibrary()
	for _, clip := range decoded {
		if clip != nil {
			lib.Add(clip)
		}
	}
	if skipped := len(paths) - lib.Len(); skipped > 0 {
		logger.Warn().Int("skipped", skipped).Int("kept", lib.Len()).Msg("some tracks could not be decoded")
	}
	return lib, nil
}

// ListFiles returns the regular files in dir with the given extension, sorted
// by name. The match is exact unless ignoreCase is set.
func ListFiles(dir, ext string, ignoreCase bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext != "" && !matchExt(entry.Name(), ext, ignoreCase) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(paths)
	return paths, nil
}

func matchExt(name, ext string, ignoreCase bool) bool {
	if ignoreCase {
		return strings.EqualFold(filepath.Ext(name), ext)
	}
	return strings.HasSuffix(name, ext)
}
