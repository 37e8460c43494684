// Package source reads the per-gameweek snapshot tree into unified tables.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
	"golang.org/x/sync/errgroup"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

var (
	// ErrRootNotFound is returned when the By Gameweek directory does not exist.
	ErrRootNotFound = errors.New("snapshot root not found")

	// ErrFileNotFound is returned in strict mode when a snapshot lacks a file.
	ErrFileNotFound = errors.New("snapshot file not found")
)

// GameweekDirName is the directory under a season holding the snapshots.
const GameweekDirName = "By Gameweek"

// TableSpec names a snapshot file and how to treat its absence.
type TableSpec struct {
	Name   string
	File   string
	Strict bool
}

// DefaultTables returns the standard snapshot tables. The substitute stats
// table and the per-match stats are loaded leniently unless strict is set.
func DefaultTables(strict bool) []TableSpec {
	return []TableSpec{
		{Name: schema.Teams, File: "teams.csv", Strict: true},
		{Name: schema.Players, File: "players.csv", Strict: true},
		{Name: schema.Matches, File: "matches.csv", Strict: true},
		{Name: schema.Fixtures, File: "fixtures.csv", Strict: true},
		{Name: schema.PlayerGameweekStats, File: "player_gameweek_stats.csv", Strict: true},
		{Name: schema.PlayerStats, File: "playerstats.csv", Strict: strict},
		{Name: schema.PlayerMatchStats, File: "playermatchstats.csv", Strict: strict},
	}
}

// Loader reads snapshot files from a blob bucket rooted at the data root.
type Loader struct {
	bucket *blob.Bucket
	log    *slog.Logger
}

// NewLoader wraps an open bucket. The loader takes ownership of the bucket.
func NewLoader(bucket *blob.Bucket) *Loader {
	return &Loader{
		bucket: bucket,
		log:    slog.With("component", "loader"),
	}
}

// Open opens a data root. Plain paths and file:// URLs use the local
// filesystem; gs:// and s3:// URLs use the cloud drivers, with the URL path
// used as a key prefix.
func Open(ctx context.Context, root string) (*Loader, error) {
	bucket, err := OpenBucket(ctx, root)
	if err != nil {
		return nil, err
	}
	return NewLoader(bucket), nil
}

// OpenBucket opens a bucket for a local path or a gocloud URL.
func OpenBucket(ctx context.Context, root string) (*blob.Bucket, error) {
	u, err := url.Parse(root)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return openLocal(root)
	}
	if u.Scheme == "file" {
		return openLocal(u.Path)
	}

	prefix := strings.TrimPrefix(u.Path, "/")
	u.Path = ""
	bucket, err := blob.OpenBucket(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", root, err)
	}
	if prefix != "" {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return bucket, nil
}

func openLocal(dir string) (*blob.Bucket, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, abs)
	}
	bucket, err := fileblob.OpenBucket(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open local bucket %s: %w", abs, err)
	}
	return bucket, nil
}

// Close releases the bucket.
func (l *Loader) Close() error {
	if l.bucket != nil {
		return l.bucket.Close()
	}
	return nil
}

// SeasonDir returns the key prefix of a season's By Gameweek directory.
func SeasonDir(season string) string {
	return season + "/" + GameweekDirName + "/"
}

// Gameweeks lists the snapshot directories under dir. Entries whose names do
// not parse as a gameweek are skipped.
func (l *Loader) Gameweeks(ctx context.Context, dir string) (*GameweekIndex, error) {
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	idx := NewGameweekIndex()
	entries := 0
	iter := l.bucket.List(&blob.ListOptions{Prefix: dir, Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		entries++
		if !obj.IsDir {
			continue
		}
		if !idx.Add(obj.Key) {
			l.log.Debug("skipping non-gameweek entry", "key", obj.Key)
		}
	}
	if entries == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, dir)
	}
	return idx, nil
}

// LoadAll concatenates filename from every gameweek directory under dir in
// ascending gameweek order, injecting a leading gw column when the file has
// none. A missing file fails in strict mode and is skipped otherwise. When
// no directory holds the file the result is an empty table; its header is
// kept if any file was read.
func (l *Loader) LoadAll(ctx context.Context, dir, filename string, strict bool) (*frame.Table, error) {
	idx, err := l.Gameweeks(ctx, dir)
	if err != nil {
		return nil, err
	}

	var parts []*frame.Table
	for _, gd := range idx.Dirs() {
		key, ok, err := l.resolve(ctx, gd.Prefix, filename)
		if err != nil {
			return nil, err
		}
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: %s%s", ErrFileNotFound, gd.Prefix, filename)
			}
			l.log.Debug("snapshot file missing", "gw", gd.Gameweek, "file", filename)
			continue
		}

		t, err := l.readTable(ctx, key)
		if err != nil {
			return nil, err
		}
		if !t.Has("gw") && t.Width() > 0 {
			t = withGameweek(t, gd.Gameweek)
		}
		parts = append(parts, t)
	}

	if len(parts) == 0 {
		return frame.New(), nil
	}
	return frame.Concat(parts...), nil
}

// LoadTables loads the listed tables of a season concurrently. The result
// is keyed by table name.
func (l *Loader) LoadTables(ctx context.Context, season string, specs []TableSpec) (map[string]*frame.Table, error) {
	dir := SeasonDir(season)
	if _, err := l.Gameweeks(ctx, dir); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]*frame.Table, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			t, err := l.LoadAll(gctx, dir, spec.File, spec.Strict)
			if err != nil {
				return fmt.Errorf("load %s: %w", spec.Name, err)
			}
			mu.Lock()
			out[spec.Name] = t
			mu.Unlock()
			l.log.Debug("table loaded", "table", spec.Name, "rows", t.Len(), "columns", t.Width())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolve finds filename or its .zst variant under prefix.
func (l *Loader) resolve(ctx context.Context, prefix, filename string) (string, bool, error) {
	for _, key := range []string{prefix + filename, prefix + filename + ".zst"} {
		ok, err := l.bucket.Exists(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("stat %s: %w", key, err)
		}
		if ok {
			return key, true, nil
		}
	}
	return "", false, nil
}

func (l *Loader) readTable(ctx context.Context, key string) (*frame.Table, error) {
	r, err := l.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer r.Close()

	rc, err := openDecoded(key, r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := DecodeCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return t, nil
}

func withGameweek(t *frame.Table, gw int) *frame.Table {
	cols := append([]string{"gw"}, t.Columns()...)
	out := frame.New(cols...)
	for i := 0; i < t.Len(); i++ {
		out.Append(append([]frame.Value{frame.Int(gw)}, t.Row(i)...)...)
	}
	return out
}
