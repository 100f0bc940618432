package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// Source reads the rows of one feed file in the column order of its table.
// Columns the file lacks read as core.Absent; columns the table does not
// declare are ignored.
type Source struct {
	table   *core.Table
	name    string
	closer  io.Closer
	reader  *csv.Reader
	columns []int // file column per table field, -1 when absent
	missing []string
	size    int64
	done    bool
}

// NewSource reads the header of r and returns a source for t. size is the
// file size in bytes, or 0 when unknown. The source closes closer, if any,
// when it is closed.
func NewSource(t *core.Table, name string, r io.Reader, size int64, closer io.Closer) (*Source, error) {
	cr := csv.NewReader(newTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	s := &Source{
		table:  t,
		name:   name,
		closer: closer,
		reader: cr,
		size:   size,
	}

	header, err := cr.Read()
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		header = nil
	case err != nil:
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	s.mapHeader(header)
	return s, nil
}

func (s *Source) mapHeader(header []string) {
	position := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, dup := position[col]; !dup {
			position[col] = i
		}
	}

	fields := s.table.Fields()
	s.columns = make([]int, len(fields))
	for i, f := range fields {
		idx, ok := position[f.Name()]
		if !ok {
			idx = -1
			if f.IsRequired() {
				s.missing = append(s.missing, f.Name())
			}
		}
		s.columns[i] = idx
	}
}

// Next returns the next row with its line number in slot 0.
func (s *Source) Next() ([]string, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		record, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if blank(record) {
			continue
		}

		line, _ := s.reader.FieldPos(0)
		row := make([]string, len(s.columns)+1)
		row[0] = strconv.Itoa(line)
		for i, idx := range s.columns {
			if idx < 0 || idx >= len(record) {
				row[i+1] = core.Absent
				continue
			}
			row[i+1] = record[idx]
		}
		return row, nil
	}
}

// blank reports whether record is a line of empty cells, as left behind by
// trailing commas.
func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// MissingColumns returns the required columns absent from the header.
func (s *Source) MissingColumns() []string {
	return s.missing
}

// Size returns the size of the file in bytes.
func (s *Source) Size() int64 {
	return s.size
}

// Close releases the underlying file.
func (s *Source) Close() error {
	s.done = true
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
