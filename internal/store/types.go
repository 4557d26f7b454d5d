package store

import (
	"database/sql"
	"strings"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// defaultStringLength is reported for unbounded VARCHAR columns.
const defaultStringLength = 255

type columnInfo struct {
	Name             string
	DataType         string
	Nullable         bool
	CharMaxLength    sql.NullInt64
	NumericPrecision sql.NullInt64
	NumericScale     sql.NullInt64
}

// baseType strips parameters such as DECIMAL(18,3) or VARCHAR(10).
func baseType(dataType string) string {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return t
}

// FieldTypeOf maps a DuckDB column to a domain field type.
func FieldTypeOf(name, dataType string) domain.FieldType {
	t := baseType(dataType)
	switch {
	case t == "GEOMETRY":
		return domain.FieldTypeGeometry
	case t == "BLOB" && strings.EqualFold(name, domain.ShapeField):
		return domain.FieldTypeGeometry
	case strings.EqualFold(name, domain.ObjectIDField) && isIntegerType(t):
		return domain.FieldTypeOID
	}

	switch t {
	case "BIGINT", "INTEGER", "HUGEINT", "UBIGINT", "UINTEGER", "INT8", "INT4", "INT":
		return domain.FieldTypeInteger
	case "SMALLINT", "TINYINT", "USMALLINT", "UTINYINT", "BOOLEAN":
		return domain.FieldTypeSmallInteger
	case "DOUBLE", "DECIMAL", "NUMERIC":
		return domain.FieldTypeDouble
	case "FLOAT", "REAL":
		return domain.FieldTypeSingle
	case "DATE", "TIMESTAMP", "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ", "TIME":
		return domain.FieldTypeDate
	case "BLOB":
		return domain.FieldTypeBlob
	case "UUID":
		return domain.FieldTypeGUID
	default:
		return domain.FieldTypeString
	}
}

func isIntegerType(t string) bool {
	switch t {
	case "BIGINT", "INTEGER", "SMALLINT", "HUGEINT", "UBIGINT", "UINTEGER":
		return true
	}
	return false
}

func fieldLength(ft domain.FieldType, charMax sql.NullInt64) int {
	switch ft {
	case domain.FieldTypeString:
		if charMax.Valid && charMax.Int64 > 0 {
			return int(charMax.Int64)
		}
		return defaultStringLength
	case domain.FieldTypeInteger, domain.FieldTypeSingle, domain.FieldTypeOID:
		return 4
	case domain.FieldTypeSmallInteger:
		return 2
	case domain.FieldTypeDouble, domain.FieldTypeDate:
		return 8
	case domain.FieldTypeGUID:
		return 38
	default:
		return 0
	}
}

func (c columnInfo) toField() domain.Field {
	ft := FieldTypeOf(c.Name, c.DataType)
	f := domain.Field{
		Name:       c.Name,
		AliasName:  c.Name,
		BaseName:   c.Name,
		Type:       ft,
		Length:     fieldLength(ft, c.CharMaxLength),
		IsNullable: c.Nullable,
		Editable:   ft != domain.FieldTypeOID,
		Required:   ft == domain.FieldTypeOID || ft == domain.FieldTypeGeometry,
	}
	if ft == domain.FieldTypeDouble && baseType(c.DataType) != "DOUBLE" {
		if c.NumericPrecision.Valid {
			f.Precision = int(c.NumericPrecision.Int64)
		}
		if c.NumericScale.Valid {
			f.Scale = int(c.NumericScale.Int64)
		}
	}
	return f
}

// nativeType is the DuckDB column type used when creating a field.
func nativeType(f domain.Field) string {
	switch f.Type {
	case domain.FieldTypeInteger:
		return "BIGINT"
	case domain.FieldTypeOID:
		return "INTEGER"
	case domain.FieldTypeSmallInteger:
		return "SMALLINT"
	case domain.FieldTypeDouble:
		// Always DOUBLE; precision and scale live in the definitions only.
		return "DOUBLE"
	case domain.FieldTypeSingle:
		return "FLOAT"
	case domain.FieldTypeDate:
		return "TIMESTAMP"
	case domain.FieldTypeGUID:
		return "UUID"
	case domain.FieldTypeBlob, domain.FieldTypeGeometry:
		return "BLOB"
	default:
		return "VARCHAR"
	}
}
