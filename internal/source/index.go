package source

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// GameweekDir is one snapshot directory in the By Gameweek tree.
type GameweekDir struct {
	Name     string // directory name as stored, e.g. "GW7"
	Gameweek int
	Prefix   string // bucket key prefix ending in "/"
}

// GameweekIndex maintains the snapshot directories ordered by gameweek.
type GameweekIndex struct {
	dirs []GameweekDir
	byGW map[int]int
}

// NewGameweekIndex creates an empty index.
func NewGameweekIndex() *GameweekIndex {
	return &GameweekIndex{byGW: make(map[int]int)}
}

// Snapshot directory pattern: case-insensitive "gw" followed by the number.
// Example: GW12, gw3
var gameweekDirPattern = regexp.MustCompile(`^(?i:gw)\s*(\d+)$`)

// ParseGameweekDir extracts the gameweek number from a snapshot directory name.
func ParseGameweekDir(name string) (int, bool) {
	base := path.Base(strings.TrimSuffix(name, "/"))
	matches := gameweekDirPattern.FindStringSubmatch(base)
	if matches == nil {
		return 0, false
	}
	gw, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return gw, true
}

// Add indexes a directory prefix if its name parses. A second directory for
// the same gameweek is ignored.
func (idx *GameweekIndex) Add(prefix string) bool {
	gw, ok := ParseGameweekDir(prefix)
	if !ok {
		return false
	}
	if _, dup := idx.byGW[gw]; dup {
		return false
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	idx.dirs = append(idx.dirs, GameweekDir{
		Name:     path.Base(strings.TrimSuffix(prefix, "/")),
		Gameweek: gw,
		Prefix:   prefix,
	})
	idx.sort()
	return true
}

func (idx *GameweekIndex) sort() {
	sort.Slice(idx.dirs, func(i, j int) bool {
		return idx.dirs[i].Gameweek < idx.dirs[j].Gameweek
	})
	for i, d := range idx.dirs {
		idx.byGW[d.Gameweek] = i
	}
}

// Dirs returns the indexed directories in ascending gameweek order.
func (idx *GameweekIndex) Dirs() []GameweekDir {
	return append([]GameweekDir(nil), idx.dirs...)
}

// Get returns the directory for a gameweek.
func (idx *GameweekIndex) Get(gw int) (GameweekDir, bool) {
	i, ok := idx.byGW[gw]
	if !ok {
		return GameweekDir{}, false
	}
	return idx.dirs[i], true
}

// Count returns the number of indexed directories.
func (idx *GameweekIndex) Count() int {
	return len(idx.dirs)
}

// Min returns the lowest indexed gameweek, 0 when empty.
func (idx *GameweekIndex) Min() int {
	if len(idx.dirs) == 0 {
		return 0
	}
	return idx.dirs[0].Gameweek
}

// Max returns the highest indexed gameweek, 0 when empty.
func (idx *GameweekIndex) Max() int {
	if len(idx.dirs) == 0 {
		return 0
	}
	return idx.dirs[len(idx.dirs)-1].Gameweek
}

// Gaps returns the gameweeks between Min and Max with no snapshot directory.
func (idx *GameweekIndex) Gaps() []int {
	var gaps []int
	for gw := idx.Min(); gw <= idx.Max() && len(idx.dirs) > 0; gw++ {
		if _, ok := idx.byGW[gw]; !ok {
			gaps = append(gaps, gw)
		}
	}
	return gaps
}

// IsCompressed checks if a key is zstd compressed.
func IsCompressed(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".zst")
}
