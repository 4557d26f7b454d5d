package domain

import "strings"

// DataType classifies an entity in the structured store.
type DataType string

// Entity data types.
const (
	DataTypeTable        DataType = "Table"
	DataTypeFeatureClass DataType = "FeatureClass"
	DataTypeView         DataType = "View"
)

// FieldType is the store-independent type of a field.
type FieldType string

// Field types.
const (
	FieldTypeString       FieldType = "String"
	FieldTypeInteger      FieldType = "Integer"
	FieldTypeSmallInteger FieldType = "SmallInteger"
	FieldTypeDouble       FieldType = "Double"
	FieldTypeSingle       FieldType = "Single"
	FieldTypeDate         FieldType = "Date"
	FieldTypeOID          FieldType = "OID"
	FieldTypeGeometry     FieldType = "Geometry"
	FieldTypeBlob         FieldType = "Blob"
	FieldTypeGUID         FieldType = "GUID"
)

// IsText reports whether values of this type are stored as VARCHAR. GUID
// values are stored as UUID and never hold the empty string.
func (t FieldType) IsText() bool {
	return t == FieldTypeString
}

// Housekeeping field names maintained by the store itself.
const (
	ObjectIDField    = "OBJECTID"
	ShapeField       = "Shape"
	ShapeAreaField   = "Shape_Area"
	ShapeLengthField = "Shape_Length"
)

// Entity is a named table or feature collection within the structured store.
type Entity struct {
	Name     string
	Schema   string
	DataType DataType
	Fields   []Field
}

// Field is a column of an entity.
type Field struct {
	Name         string
	AliasName    string
	BaseName     string
	Type         FieldType
	Length       int
	Precision    int
	Scale        int
	IsNullable   bool
	Editable     bool
	Required     bool
	Domain       string
	DefaultValue *string
}

// IsHousekeeping reports whether the field is a geometry, object-ID or
// computed shape-measurement field. Such fields never appear in definitions.
func (f Field) IsHousekeeping() bool {
	if f.Type == FieldTypeGeometry || f.Type == FieldTypeOID {
		return true
	}
	switch strings.ToLower(f.Name) {
	case strings.ToLower(ShapeAreaField), strings.ToLower(ShapeLengthField):
		return true
	}
	return false
}

// DefinitionFields returns the fields that belong in field/table definitions,
// in listing order.
func DefinitionFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.IsHousekeeping() {
			continue
		}
		out = append(out, f)
	}
	return out
}
