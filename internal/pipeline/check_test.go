package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/gameweek-dataset/internal/dataset"
	"github.com/withObsrvr/gameweek-dataset/internal/frame"
	"github.com/withObsrvr/gameweek-dataset/internal/tables"
)

func built(rows ...[2]int) *frame.Table {
	t := frame.New("player_id", "gw", "points_next_1_total")
	for _, r := range rows {
		t.Append(frame.Int(r[0]), frame.Int(r[1]), frame.Num(2))
	}
	return t
}

func encoded(t *testing.T, tbl *frame.Table) *tables.Encoded {
	t.Helper()
	enc, err := tables.Encode(tbl, tables.ExportConfig{Format: tables.FormatCSV})
	require.NoError(t, err)
	return enc
}

func TestCheckDataset(t *testing.T) {
	labelCols := []string{"points_next_1_total"}

	tests := []struct {
		name    string
		kind    dataset.Kind
		table   *frame.Table
		mutate  func(*tables.Encoded)
		labels  []string
		passed  bool
		message string
	}{
		{
			name:   "valid training",
			kind:   dataset.KindTraining,
			table:  built([2]int{101, 1}, [2]int{102, 1}),
			labels: labelCols,
			passed: true,
		},
		{
			name:    "duplicate key",
			kind:    dataset.KindFeatures,
			table:   built([2]int{101, 1}, [2]int{101, 1}),
			message: "duplicate player_id/gw",
		},
		{
			name:    "row beyond watermark",
			kind:    dataset.KindTraining,
			table:   built([2]int{101, 1}, [2]int{101, 3}),
			message: "beyond max finished gw",
		},
		{
			name:   "prediction may exceed watermark",
			kind:   dataset.KindPrediction,
			table:  built([2]int{101, 3}),
			passed: true,
		},
		{
			name:    "missing label column",
			kind:    dataset.KindTraining,
			table:   built([2]int{101, 1}),
			labels:  []string{"points_next_5_total"},
			message: "missing label column",
		},
		{
			name:    "checksum mismatch",
			kind:    dataset.KindFeatures,
			table:   built([2]int{101, 1}),
			mutate:  func(e *tables.Encoded) { e.Checksum = tables.ComputeChecksum([]byte("other")) },
			message: "checksum does not match",
		},
		{
			name:    "row count mismatch",
			kind:    dataset.KindFeatures,
			table:   built([2]int{101, 1}),
			mutate:  func(e *tables.Encoded) { e.Rows = 5 },
			message: "row count mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encoded(t, tt.table)
			if tt.mutate != nil {
				tt.mutate(enc)
			}
			res := CheckDataset(tt.kind, tt.table, enc, 2, tt.labels)
			assert.Equal(t, tt.passed, res.Passed, res.Errors)
			if tt.passed {
				assert.NoError(t, res.Err())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors[0], tt.message)
			assert.True(t, errors.Is(res.Err(), ErrCheckFailed))
		})
	}
}

func TestCheckDatasetEmpty(t *testing.T) {
	res := CheckDataset(dataset.KindTraining, built(), nil, 2, nil)
	assert.False(t, res.Passed)

	tbl := built()
	res = CheckDataset(dataset.KindTraining, tbl, encoded(t, tbl), 2, nil)
	assert.True(t, res.Passed)
	assert.Contains(t, res.Warnings, "dataset has no rows")
}
