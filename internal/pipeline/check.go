package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/tables"
)

// ErrCheckFailed is returned when a built dataset fails its pre-publish checks.
var ErrCheckFailed = errors.New("dataset check failed")

// CheckResult contains the outcome of dataset checks.
type CheckResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
}

// Err returns nil when the checks passed.
func (r CheckResult) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCheckFailed, strings.Join(r.Errors, "; "))
}

func (r *CheckResult) fail(format string, args ...any) {
	r.Passed = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// CheckDataset runs quality checks on a built dataset before it is
// published:
//   - the encoded payload is non-empty and matches its checksum
//   - the encoded row count matches the frame
//   - (player_id, gw) is unique
//   - training and feature rows stay at or below the watermark
//   - training datasets carry every label column
func CheckDataset(kind dataset.Kind, t *frame.Table, enc *tables.Encoded, watermark int, labelCols []string) CheckResult {
	result := CheckResult{Passed: true}

	if enc == nil || len(enc.Data) == 0 {
		result.fail("no encoded output")
		return result
	}
	if !strings.HasPrefix(enc.Checksum, "sha256:") {
		result.Warnings = append(result.Warnings, fmt.Sprintf("checksum in non-standard format: %.20s", enc.Checksum))
	}
	if !tables.VerifyChecksum(enc.Data, enc.Checksum) {
		result.fail("checksum does not match encoded data")
	}
	if enc.Rows != t.Len() {
		result.fail("row count mismatch: encoded %d, built %d", enc.Rows, t.Len())
	}
	if t.Len() == 0 {
		result.Warnings = append(result.Warnings, "dataset has no rows")
		return result
	}

	for _, col := range []string{"player_id", "gw"} {
		if !t.Has(col) {
			result.fail("missing key column %s", col)
		}
	}
	if !result.Passed {
		return result
	}

	seen := make(map[string]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		key := t.Get(i, "player_id").Key() + "|" + t.Get(i, "gw").Key()
		if prev, ok := seen[key]; ok {
			result.fail("duplicate player_id/gw %s at rows %d and %d", key, prev, i)
			break
		}
		seen[key] = i
	}

	if kind != dataset.KindPrediction {
		for i := 0; i < t.Len(); i++ {
			if gw, ok := t.Get(i, "gw").Int(); ok && gw > watermark {
				result.fail("row %d has gw %d beyond max finished gw %d", i, gw, watermark)
				break
			}
		}
	}

	if kind == dataset.KindTraining {
		for _, col := range labelCols {
			if !t.Has(col) {
				result.fail("missing label column %s", col)
			}
		}
	}
	return result
}
