package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

// openDecoded wraps r with a zstd decoder when the key is compressed.
func openDecoded(key string, r io.Reader) (io.ReadCloser, error) {
	if !IsCompressed(key) {
		return io.NopCloser(r), nil
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder for %s: %w", key, err)
	}
	return dec.IOReadCloser(), nil
}

// DecodeCSV parses a snapshot CSV into a table. Cell types are inferred per
// cell; short rows are padded with nulls and long rows truncated to the
// header. A file without a header yields a table with no columns.
func DecodeCSV(r io.Reader) (*frame.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return frame.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := uniqueHeader(header)
	t := frame.New(cols...)

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(cols) > 1 {
			continue
		}
		row := make([]frame.Value, len(cols))
		for j := range cols {
			if j < len(rec) {
				row[j] = frame.Infer(rec[j])
			}
		}
		t.Append(row...)
	}
	return t, nil
}

// uniqueHeader strips a UTF-8 BOM and suffixes repeated names with .1, .2, ...
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool)
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "unnamed_" + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
