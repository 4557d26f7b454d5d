package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmfs-ost/dismap/internal/domain"
)

func seedRegions(t *testing.T, s *DuckStore) {
	t.Helper()
	MustExec(t, s,
		`CREATE TABLE "AI_IDW" (OBJECTID INTEGER, Species VARCHAR, Year BIGINT, WTCPUE DOUBLE)`,
		`CREATE TABLE "AI_IDW_Region" (OBJECTID INTEGER, Shape BLOB, Region VARCHAR, Shape_Length DOUBLE, Shape_Area DOUBLE)`,
		`CREATE VIEW "AI_IDW_View" AS SELECT Species FROM "AI_IDW"`,
		`CREATE SCHEMA survey`,
		`CREATE TABLE survey."HI_IDW" (Species VARCHAR)`,
	)
}

func TestDuckStore_Walk(t *testing.T) {
	s := OpenTestStore(t)
	seedRegions(t, s)

	entities, err := s.Walk(context.Background())
	require.NoError(t, err)

	got := make(map[string]domain.DataType)
	var names []string
	for _, e := range entities {
		got[e.Name] = e.DataType
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"AI_IDW", "AI_IDW_Region", "AI_IDW_View", "HI_IDW"}, names)
	assert.Equal(t, domain.DataTypeTable, got["AI_IDW"])
	assert.Equal(t, domain.DataTypeFeatureClass, got["AI_IDW_Region"])
	assert.Equal(t, domain.DataTypeView, got["AI_IDW_View"])
	assert.Equal(t, domain.DataTypeTable, got["HI_IDW"])
}

func TestDuckStore_ListFields(t *testing.T) {
	s := OpenTestStore(t)
	seedRegions(t, s)
	MustExec(t, s, `COMMENT ON COLUMN "AI_IDW".Species IS 'Species Name'`)
	ctx := context.Background()

	fields, err := s.ListFields(ctx, "AI_IDW_Region")
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, domain.FieldTypeOID, fields[0].Type)
	assert.True(t, fields[0].Required)
	assert.Equal(t, domain.FieldTypeGeometry, fields[1].Type)
	assert.Equal(t, domain.FieldTypeString, fields[2].Type)
	assert.Equal(t, 255, fields[2].Length)
	assert.True(t, fields[2].IsNullable)

	defs := domain.DefinitionFields(fields)
	require.Len(t, defs, 1)
	assert.Equal(t, "Region", defs[0].Name)

	fields, err = s.ListFields(ctx, "AI_IDW")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	assert.Equal(t, "Species Name", fields[1].AliasName)
	assert.Equal(t, "Species", fields[1].BaseName)
	assert.Equal(t, domain.FieldTypeInteger, fields[2].Type)
	assert.Equal(t, domain.FieldTypeDouble, fields[3].Type)

	fields, err = s.ListFields(ctx, "HI_IDW")
	require.NoError(t, err)
	assert.Len(t, fields, 1)

	_, err = s.ListFields(ctx, "Nope")
	var missing *domain.MissingResourceError
	assert.ErrorAs(t, err, &missing)
}

func TestDuckStore_LoadLifecycle(t *testing.T) {
	s := OpenTestStore(t)
	ctx := context.Background()

	fields := []domain.Field{
		{Name: "Species", Type: domain.FieldTypeString, IsNullable: true},
		{Name: "Year", Type: domain.FieldTypeInteger, IsNullable: true},
		{Name: "WTCPUE", Type: domain.FieldTypeDouble, IsNullable: true},
		{Name: "Present", Type: domain.FieldTypeSmallInteger, IsNullable: true},
		{Name: "SampleID", Type: domain.FieldTypeGUID, IsNullable: true},
	}
	require.NoError(t, s.CreateEntity(ctx, "staging", fields))
	require.NoError(t, s.CreateEntity(ctx, "target", fields))

	ok, err := s.Exists(ctx, "staging")
	require.NoError(t, err)
	assert.True(t, ok)

	rows := [][]any{
		{"Gadus macrocephalus", int64(2019), 1.5, int16(1), uuid.New()},
		{"", int64(2020), nil, int16(0), nil},
		{"Sebastes alutus", nil, 0.25, nil, nil},
	}
	require.NoError(t, s.BulkLoad(ctx, "staging", rows))

	n, err := s.NullEmptyStrings(ctx, "staging", "Species")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.CopyRows(ctx, "staging", "target"))
	require.NoError(t, s.DeleteEntity(ctx, "staging"))

	ok, err = s.Exists(ctx, "staging")
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := s.CountRows(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var nulls int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT count(*) FROM target WHERE Species IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	out := filepath.Join(t.TempDir(), "Export", "target.csv")
	require.NoError(t, s.ExportCSV(ctx, "target", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Species,Year,WTCPUE,Present,SampleID")

	require.NoError(t, s.Compact(ctx))
	// Deleting twice is harmless.
	require.NoError(t, s.DeleteEntity(ctx, "staging"))
}

func TestDuckStore_SearchColumn(t *testing.T) {
	s := OpenTestStore(t)
	MustExec(t, s,
		`CREATE TABLE Datasets (DatasetCode VARCHAR, TableName VARCHAR)`,
		`INSERT INTO Datasets VALUES ('AI', 'AI_IDW'), ('HI', 'HI_IDW'), ('AI2', 'AI_IDW'), ('X', NULL)`,
	)
	got, err := s.SearchColumn(context.Background(), "Datasets", "TableName")
	require.NoError(t, err)
	assert.Equal(t, []string{"AI_IDW", "HI_IDW"}, got)
}

func TestDuckStore_AliasAndMetadata(t *testing.T) {
	s := OpenTestStore(t)
	ctx := context.Background()
	MustExec(t, s, `CREATE TABLE "AI_IDW" (Species VARCHAR)`)

	require.NoError(t, s.AlterFieldAlias(ctx, "AI_IDW", "Species", "Species Name"))
	require.NoError(t, s.ImportMetadata(ctx, "AI_IDW", domain.Metadata{Title: "Aleutian Islands", Purpose: "IDW input"}))

	fields, err := s.ListFields(ctx, "AI_IDW")
	require.NoError(t, err)
	assert.Equal(t, "Species Name", fields[0].AliasName)

	var comment string
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT comment FROM duckdb_tables() WHERE table_name = 'AI_IDW'`).Scan(&comment))
	assert.Equal(t, "Aleutian Islands\n\nIDW input", comment)
}

func TestOpen_MustExist(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.duckdb"), true)
	var missing *domain.MissingResourceError
	assert.ErrorAs(t, err, &missing)
}

func TestFieldTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		dataType string
		want     domain.FieldType
	}{
		{"varchar", "Species", "VARCHAR", domain.FieldTypeString},
		{"bigint", "Year", "BIGINT", domain.FieldTypeInteger},
		{"object id", "OBJECTID", "INTEGER", domain.FieldTypeOID},
		{"object id as text", "OBJECTID", "VARCHAR", domain.FieldTypeString},
		{"smallint", "Flag", "SMALLINT", domain.FieldTypeSmallInteger},
		{"boolean", "Flag", "BOOLEAN", domain.FieldTypeSmallInteger},
		{"decimal", "Depth", "DECIMAL(18,3)", domain.FieldTypeDouble},
		{"float", "Depth", "FLOAT", domain.FieldTypeSingle},
		{"timestamp", "Date", "TIMESTAMP", domain.FieldTypeDate},
		{"shape blob", "Shape", "BLOB", domain.FieldTypeGeometry},
		{"other blob", "Raw", "BLOB", domain.FieldTypeBlob},
		{"geometry", "geom", "GEOMETRY", domain.FieldTypeGeometry},
		{"uuid", "ID", "UUID", domain.FieldTypeGUID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldTypeOf(tt.column, tt.dataType))
		})
	}
}
