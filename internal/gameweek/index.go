// Package gameweek derives the finished-gameweek watermark from match records.
package gameweek

import (
	"fmt"
	"slices"
	"strings"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/schema"
)

// FinishedIndex lists the gameweeks whose every match has finished.
// MaxFinished is the temporal watermark, 0 when nothing has finished.
type FinishedIndex struct {
	Finished    []int `json:"finished_gws"`
	MaxFinished int   `json:"max_finished_gw"`
}

// Contains reports whether gw is finished.
func (ix FinishedIndex) Contains(gw int) bool {
	_, ok := slices.BinarySearch(ix.Finished, gw)
	return ok
}

// IsEmpty reports whether no gameweek has finished.
func (ix FinishedIndex) IsEmpty() bool {
	return len(ix.Finished) == 0
}

// Column returns the gameweek column of a match-like table, preferring gw
// over the gameweek alias. It returns "" when neither exists.
func Column(t *frame.Table) string {
	switch {
	case t.Has("gw"):
		return "gw"
	case t.Has("gameweek"):
		return "gameweek"
	}
	return ""
}

// Compute groups match rows by gameweek and keeps the gameweeks in which
// every row carries a truthy finished flag.
func Compute(matches *frame.Table) (FinishedIndex, error) {
	gwCol := Column(matches)
	var missing []string
	if gwCol == "" {
		missing = append(missing, "gw|gameweek")
	}
	if !matches.Has("finished") {
		missing = append(missing, "finished")
	}
	if len(missing) > 0 {
		return FinishedIndex{}, &schema.MissingKeyError{Component: "finished index", Keys: missing}
	}

	done := make(map[int]bool)
	for i := 0; i < matches.Len(); i++ {
		gw, ok := matches.Get(i, gwCol).Int()
		if !ok {
			return FinishedIndex{}, fmt.Errorf("finished index: row %d: %s %q is not an integer",
				i, gwCol, matches.Get(i, gwCol).String())
		}
		finished := IsTruthy(matches.Get(i, "finished"))
		if prev, seen := done[gw]; seen {
			done[gw] = prev && finished
		} else {
			done[gw] = finished
		}
	}

	ix := FinishedIndex{Finished: []int{}}
	for gw, ok := range done {
		if ok {
			ix.Finished = append(ix.Finished, gw)
		}
	}
	slices.Sort(ix.Finished)
	if n := len(ix.Finished); n > 0 {
		ix.MaxFinished = ix.Finished[n-1]
	}
	return ix, nil
}

// IsTruthy interprets a heterogeneous finished flag: booleans as is,
// non-zero numbers, and the strings true, 1, t and yes in any case.
func IsTruthy(v frame.Value) bool {
	switch v.Kind() {
	case frame.KindBool:
		b, _ := v.Bool()
		return b
	case frame.KindNumber:
		f, _ := v.Float()
		return f != 0
	case frame.KindText:
		switch strings.ToLower(strings.TrimSpace(v.String())) {
		case "true", "1", "t", "yes":
			return true
		}
	}
	return false
}
