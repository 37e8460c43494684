// Package tables encodes assembled frames into their on-disk formats.
package tables

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/withObsrvr/gameweek-dataset/internal/frame"
)

// SchemaVersion returns the version of the dataset layout.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"

// Format is an output encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// Ext is the file extension of the format.
func (f Format) Ext() string {
	return string(f)
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatParquet, FormatCSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ExportConfig configures encoding.
type ExportConfig struct {
	Format      Format
	Compression string // "snappy" | "zstd" | "none"; parquet only
}

// DefaultExportConfig is snappy-compressed parquet.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Format:      FormatParquet,
		Compression: "snappy",
	}
}

// Encoded is a frame rendered to bytes.
type Encoded struct {
	Data     []byte
	Rows     int
	Columns  []string
	Checksum string
}

// Encode renders t in the configured format.
func Encode(t *frame.Table, cfg ExportConfig) (*Encoded, error) {
	var (
		data []byte
		err  error
	)
	switch cfg.Format {
	case FormatCSV:
		data, err = EncodeCSV(t)
	case FormatParquet:
		data, err = EncodeParquet(t, cfg.Compression)
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
	if err != nil {
		return nil, err
	}
	return &Encoded{
		Data:     data,
		Rows:     t.Len(),
		Columns:  t.Columns(),
		Checksum: ComputeChecksum(data),
	}, nil
}

// EncodeCSV writes a header row then one record per row. Nulls are empty.
func EncodeCSV(t *frame.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, t.Width())
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = v.String()
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// columnKind is the parquet physical type chosen for a frame column.
type columnKind int

const (
	kindDouble columnKind = iota
	kindBoolean
	kindString
)

// inferKind picks double when every non-null cell is numeric, boolean when
// every one is boolean, and string otherwise.
func inferKind(t *frame.Table, col string) columnKind {
	kind, seen := kindDouble, false
	for _, v := range t.Column(col) {
		var k columnKind
		switch v.Kind() {
		case frame.KindNull:
			continue
		case frame.KindNumber:
			k = kindDouble
		case frame.KindBool:
			k = kindBoolean
		default:
			return kindString
		}
		if seen && k != kind {
			return kindString
		}
		kind, seen = k, true
	}
	return kind
}

func (k columnKind) node() parquet.Node {
	switch k {
	case kindBoolean:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case kindString:
		return parquet.Optional(parquet.String())
	}
	return parquet.Optional(parquet.Leaf(parquet.DoubleType))
}

func codec(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "none":
		return &parquet.Uncompressed, nil
	}
	return nil, fmt.Errorf("unknown parquet compression %q", name)
}

// EncodeParquet writes t as a flat parquet file of optional columns. Parquet
// groups order their fields by name, so the file's column order is sorted.
func EncodeParquet(t *frame.Table, compression string) ([]byte, error) {
	c, err := codec(compression)
	if err != nil {
		return nil, err
	}

	kinds := make(map[string]columnKind, t.Width())
	group := parquet.Group{}
	for _, col := range t.Columns() {
		kinds[col] = inferKind(t, col)
		group[col] = kinds[col].node()
	}
	schema := parquet.NewSchema("dataset", group)

	// Leaf order follows the schema, which is sorted by name.
	fields := schema.Fields()
	order := make([]string, len(fields))
	for i, f := range fields {
		order[i] = f.Name()
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema, parquet.Compression(c))
	rows := make([]parquet.Row, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		row := make(parquet.Row, len(order))
		for j, col := range order {
			row[j] = parquetValue(t.Get(i, col), kinds[col]).Level(0, definitionLevel(t.Get(i, col)), j)
		}
		rows = append(rows, row)
	}
	if _, err := w.WriteRows(rows); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func definitionLevel(v frame.Value) int {
	if v.IsNull() {
		return 0
	}
	return 1
}

func parquetValue(v frame.Value, k columnKind) parquet.Value {
	if v.IsNull() {
		return parquet.NullValue()
	}
	switch k {
	case kindBoolean:
		b, _ := v.Bool()
		return parquet.BooleanValue(b)
	case kindString:
		return parquet.ByteArrayValue([]byte(v.String()))
	}
	f, _ := v.Float()
	return parquet.DoubleValue(f)
}
