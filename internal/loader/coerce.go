package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmfs-ost/dismap/internal/domain"
	"github.com/nmfs-ost/dismap/internal/flatfile"
)

// dateLayouts are tried in order when coercing to Date fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// coerceBatch reinterprets every cell of batch against the native type of its
// target field. cols[i] is the batch column feeding fields[i].
func coerceBatch(entity string, batch *flatfile.SourceRecordBatch, fields []domain.Field, cols []int) ([][]any, error) {
	out := make([][]any, len(batch.Rows))
	for r, src := range batch.Rows {
		row := make([]any, len(fields))
		for i, f := range fields {
			raw := src[cols[i]]
			v, err := coerce(raw, f.Type)
			if err != nil {
				return nil, domain.NewTypeCoercionError(entity, f.Name, r+1, raw, f.Type, err)
			}
			row[i] = v
		}
		out[r] = row
	}
	return out, nil
}

// coerce converts one cell. Text fields keep empty strings, which are
// rewritten to NULL in the staging entity; every other type maps "" to nil.
func coerce(v string, ft domain.FieldType) (any, error) {
	if ft == domain.FieldTypeString {
		return v, nil
	}
	if v == "" {
		return nil, nil
	}
	switch ft {
	case domain.FieldTypeInteger:
		return parseInt(v, 64)
	case domain.FieldTypeSmallInteger:
		if b, ok := flatfile.ParseBool(v); ok {
			if b {
				return int16(1), nil
			}
			return int16(0), nil
		}
		n, err := parseInt(v, 16)
		if err != nil {
			return nil, err
		}
		return int16(n), nil
	case domain.FieldTypeDouble:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case domain.FieldTypeSingle:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case domain.FieldTypeDate:
		return parseDate(v)
	case domain.FieldTypeGUID:
		return uuid.Parse(strings.Trim(v, "{}"))
	case domain.FieldTypeBlob:
		return []byte(v), nil
	default:
		return v, nil
	}
}

// parseInt accepts integral floats such as "2019.0", which appear when an
// integer column was written with missing values.
func parseInt(v string, bitSize int) (int64, error) {
	v = strings.TrimSpace(v)
	n, err := strconv.ParseInt(v, 10, bitSize)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(v, 64)
	if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, err
	}
	limit := math.Ldexp(1, bitSize-1)
	if f < -limit || f >= limit {
		return 0, err
	}
	return int64(f), nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
