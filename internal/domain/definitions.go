package domain

import (
	"encoding/json"
	"fmt"
)

// Persisted document file names, written to the CSV Data directory.
const (
	FieldDefinitionsFile  = "field_definitions.json"
	TableDefinitionsFile  = "table_definitions.json"
	DatasetDictionaryFile = "dismap_gdb_dataset_dictionary.json"
)

// FieldDefinition is the persisted attribute snapshot of a field. Struct
// field order matches the lexical order of the JSON keys.
type FieldDefinition struct {
	AliasName    string    `json:"field_aliasName"`
	BaseName     string    `json:"field_baseName"`
	DefaultValue *string   `json:"field_defaultValue"`
	Domain       string    `json:"field_domain"`
	Editable     bool      `json:"field_editable"`
	IsNullable   bool      `json:"field_isNullable"`
	Length       int       `json:"field_length"`
	Name         string    `json:"field_name"`
	Precision    int       `json:"field_precision"`
	Required     bool      `json:"field_required"`
	Scale        int       `json:"field_scale"`
	Type         FieldType `json:"field_type"`
}

// NewFieldDefinition snapshots f.
func NewFieldDefinition(f Field) FieldDefinition {
	return FieldDefinition{
		AliasName:    f.AliasName,
		BaseName:     f.BaseName,
		DefaultValue: f.DefaultValue,
		Domain:       f.Domain,
		Editable:     f.Editable,
		IsNullable:   f.IsNullable,
		Length:       f.Length,
		Name:         f.Name,
		Precision:    f.Precision,
		Required:     f.Required,
		Scale:        f.Scale,
		Type:         f.Type,
	}
}

// Field converts the snapshot back to a Field.
func (d FieldDefinition) Field() Field {
	return Field{
		Name:         d.Name,
		AliasName:    d.AliasName,
		BaseName:     d.BaseName,
		Type:         d.Type,
		Length:       d.Length,
		Precision:    d.Precision,
		Scale:        d.Scale,
		IsNullable:   d.IsNullable,
		Editable:     d.Editable,
		Required:     d.Required,
		Domain:       d.Domain,
		DefaultValue: d.DefaultValue,
	}
}

// FieldDefinitions maps field name to its first-seen definition.
type FieldDefinitions map[string]FieldDefinition

// TableDefinitions maps entity name to its ordered definition field names.
type TableDefinitions map[string][]string

// Definitions bundles both persisted definition documents.
type Definitions struct {
	Fields FieldDefinitions
	Tables TableDefinitions
}

// EntityFields resolves the definition fields of entity. ok is false when the
// entity is not present in the table definitions or a listed field has no
// field definition.
func (d *Definitions) EntityFields(entity string) ([]Field, bool) {
	if d == nil {
		return nil, false
	}
	names, ok := d.Tables[entity]
	if !ok {
		return nil, false
	}
	out := make([]Field, 0, len(names))
	for _, name := range names {
		def, ok := d.Fields[name]
		if !ok {
			return nil, false
		}
		out = append(out, def.Field())
	}
	return out, true
}

// Classification is the (dataType, canonicalTableName) pair recorded for an
// entity. It serialises as a two-element JSON array.
type Classification struct {
	DataType      DataType
	CanonicalName string
}

// MarshalJSON implements json.Marshaler.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{string(c.DataType), c.CanonicalName})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("classification: expected 2 elements, got %d", len(pair))
	}
	c.DataType = DataType(pair[0])
	c.CanonicalName = pair[1]
	return nil
}

// DatasetDictionary maps entity name to its classification.
type DatasetDictionary map[string]Classification

// DictionaryFilter narrows a dataset dictionary view. Zero values match all.
type DictionaryFilter struct {
	DataType DataType
	Suffix   string
}
