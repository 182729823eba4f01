// Package csvfile reads passages from CSV exports with a
// vehicleId,vehicleType,timestamp header.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tollfee/internal/integrations"
	"tollfee/internal/model"
)

var columns = []string{"vehicleId", "vehicleType", "timestamp"}

// RowError describes one invalid data row. Row is the 1-based line in the file.
type RowError struct {
	Row    int               `json:"row"`
	Fields model.FieldErrors `json:"fields"`
}

// ParseError collects every invalid row of a file.
type ParseError struct {
	Rows []RowError
}

func (e *ParseError) Error() string {
	if len(e.Rows) == 1 {
		return fmt.Sprintf("csv: row %d: %s", e.Rows[0].Row, e.Rows[0].Fields.Error())
	}
	return fmt.Sprintf("csv: %d invalid rows, first at row %d: %s", len(e.Rows), e.Rows[0].Row, e.Rows[0].Fields.Error())
}

var ErrHeader = errors.New("csv: header must name vehicleId, vehicleType and timestamp")

// Adapter reads one CSV file from Path.
type Adapter struct {
	Path string
}

var _ integrations.Source = Adapter{}

func (a Adapter) Name() string { return "csv-file:" + a.Path }

func (a Adapter) Fetch(ctx context.Context) ([]model.PassageInput, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(ctx, f)
}

// Parse validates every row before returning any of them. Columns may come in any
// order and header names are matched case-insensitively.
func Parse(ctx context.Context, r io.Reader) ([]model.PassageInput, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var out []model.PassageInput
	var bad []RowError
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		row, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		in := model.PassageInput{
			VehicleID:   field(rec, idx["vehicleid"]),
			VehicleType: model.VehicleType(field(rec, idx["vehicletype"])),
			Timestamp:   field(rec, idx["timestamp"]),
		}.Normalize()
		if fe := in.Validate(); fe != nil {
			bad = append(bad, RowError{Row: row, Fields: fe})
			continue
		}
		out = append(out, in)
	}
	if len(bad) > 0 {
		return nil, &ParseError{Rows: bad}
	}
	return out, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := idx[strings.ToLower(c)]; !ok {
			return nil, fmt.Errorf("%w (missing %s)", ErrHeader, c)
		}
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
