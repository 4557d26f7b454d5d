package flatfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// UnnamedIndexLabel is the header label given to an unlabeled first column.
const UnnamedIndexLabel = "Unnamed: 0"

// Dtype is the inferred storage type of a source column.
type Dtype string

// Inferred dtypes.
const (
	DtypeInt64   Dtype = "int64"
	DtypeFloat64 Dtype = "float64"
	DtypeBool    Dtype = "bool"
	DtypeObject  Dtype = "object"
)

// FieldType maps a dtype onto the store's field types.
func (d Dtype) FieldType() domain.FieldType {
	switch d {
	case DtypeInt64:
		return domain.FieldTypeInteger
	case DtypeFloat64:
		return domain.FieldTypeDouble
	case DtypeBool:
		return domain.FieldTypeSmallInteger
	default:
		return domain.FieldTypeString
	}
}

// Column is a named source column with its inferred dtype.
type Column struct {
	Name  string
	Dtype Dtype
}

// Profile describes how to parse a source file consistently with itself.
type Profile struct {
	Path        string
	Encoding    string
	IndexColumn *int // nil when the file has no unlabeled index column
	Columns     []Column
}

// Dtypes returns the column dtypes keyed by column name.
func (p *Profile) Dtypes() map[string]Dtype {
	out := make(map[string]Dtype, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Name] = c.Dtype
	}
	return out
}

// Fields derives nullable store fields from the inferred dtypes.
func (p *Profile) Fields() []domain.Field {
	out := make([]domain.Field, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = domain.Field{
			Name:       c.Name,
			AliasName:  c.Name,
			BaseName:   c.Name,
			Type:       c.Dtype.FieldType(),
			IsNullable: true,
			Editable:   true,
		}
	}
	return out
}

// missingValues are the cell values read as missing.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a raw cell value denotes a missing value.
func IsMissing(v string) bool {
	_, ok := missingValues[v]
	return ok
}

// IndexColumn returns 0 when the first header label is the unlabeled-index
// sentinel and nil otherwise.
func IndexColumn(header []string) *int {
	if len(header) > 0 && header[0] == UnnamedIndexLabel {
		zero := 0
		return &zero
	}
	return nil
}

// Sniff detects the encoding, index column and per-column dtypes of the
// file at path.
func Sniff(path string) (*Profile, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	enc := DetectEncoding(raw)
	header, records, err := parse(raw, enc)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", path, err)
	}

	p := &Profile{Path: path, Encoding: enc, IndexColumn: IndexColumn(header)}
	start := 0
	if p.IndexColumn != nil {
		start = 1
	}
	for col := start; col < len(header); col++ {
		p.Columns = append(p.Columns, Column{
			Name:  header[col],
			Dtype: inferDtype(records, col),
		})
	}
	return p, nil
}

// inferDtype picks the narrowest dtype every non-missing cell of col fits.
// Integer columns with missing cells widen to float64, as do columns with
// no values at all.
func inferDtype(records [][]string, col int) Dtype {
	if len(records) == 0 {
		return DtypeObject
	}
	allInt, allFloat, allBool := true, true, true
	seen, missing := 0, false
	for _, rec := range records {
		if col >= len(rec) || IsMissing(rec[col]) {
			missing = true
			continue
		}
		v := rec[col]
		seen++
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := ParseBool(v); !ok {
				allBool = false
			}
		}
	}
	switch {
	case seen == 0:
		return DtypeFloat64
	case allInt && !missing:
		return DtypeInt64
	case allFloat:
		return DtypeFloat64
	case allBool && !missing:
		return DtypeBool
	default:
		return DtypeObject
	}
}

// ParseBool accepts the boolean spellings recognised in source files.
func ParseBool(v string) (value, ok bool) {
	switch v {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrMissingResource("source file %q not found", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

// parse decodes raw and splits it into a normalised header and records.
// Empty header labels are named "Unnamed: <position>".
func parse(raw []byte, enc string) ([]string, [][]string, error) {
	data, err := decode(raw, enc)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", enc, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, domain.ErrValidation("no header row")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		header[i] = h
	}

	var records [][]string
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read record: %w", err)
		}
		if len(rec) > len(header) {
			return nil, nil, domain.ErrValidation("line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		records = append(records, rec)
	}
	return header, records, nil
}
