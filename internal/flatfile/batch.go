package flatfile

import "fmt"

// SourceRecordBatch is the full content of a source file after encoding
// detection, index-column removal and null normalisation. Every missing
// cell holds the empty string.
type SourceRecordBatch struct {
	Columns []Column
	Rows    [][]string
}

// Len returns the number of records in the batch.
func (b *SourceRecordBatch) Len() int { return len(b.Rows) }

// ColumnIndex returns the position of name, or -1.
func (b *SourceRecordBatch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ReadBatch reads the file described by p using its encoding and index
// column, replacing every missing cell with "".
func ReadBatch(p *Profile) (*SourceRecordBatch, error) {
	raw, err := readFile(p.Path)
	if err != nil {
		return nil, err
	}
	header, records, err := parse(raw, p.Encoding)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}

	start := 0
	if p.IndexColumn != nil {
		start = *p.IndexColumn + 1
	}
	if len(header)-start != len(p.Columns) {
		return nil, fmt.Errorf("read %s: header has %d columns, profile has %d",
			p.Path, len(header)-start, len(p.Columns))
	}

	batch := &SourceRecordBatch{
		Columns: p.Columns,
		Rows:    make([][]string, 0, len(records)),
	}
	for _, rec := range records {
		row := make([]string, len(p.Columns))
		for i := range row {
			col := start + i
			if col < len(rec) && !IsMissing(rec[col]) {
				row[i] = rec[col]
			}
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}
