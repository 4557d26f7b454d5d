package loader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmfs-ost/dismap/internal/config"
	"github.com/nmfs-ost/dismap/internal/domain"
	"github.com/nmfs-ost/dismap/internal/store"
	"github.com/nmfs-ost/dismap/internal/testutil"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestLoader(t *testing.T, defs *domain.Definitions, mode string) (*Loader, *store.DuckStore, string) {
	t.Helper()
	s := store.OpenTestStore(t)
	exportDir := filepath.Join(filepath.Dir(s.Path()), "CSV Data", "Export")
	l := New(s, defs, Options{ExportDir: exportDir, Mode: mode}, slog.New(slog.DiscardHandler))
	return l, s, exportDir
}

func countWhere(t *testing.T, s *store.DuckStore, q string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().QueryRowContext(context.Background(), q).Scan(&n))
	return n
}

func surveyDefinitions(yearNullable bool) *domain.Definitions {
	return &domain.Definitions{
		Fields: domain.FieldDefinitions{
			"Species": domain.NewFieldDefinition(domain.Field{
				Name: "Species", AliasName: "Species Name", BaseName: "Species",
				Type: domain.FieldTypeString, Length: 50, IsNullable: true, Editable: true,
			}),
			"Year": domain.NewFieldDefinition(domain.Field{
				Name: "Year", AliasName: "Year", BaseName: "Year",
				Type: domain.FieldTypeSmallInteger, Length: 2, IsNullable: yearNullable, Editable: true,
			}),
			"WTCPUE": domain.NewFieldDefinition(domain.Field{
				Name: "WTCPUE", AliasName: "WTCPUE", BaseName: "WTCPUE",
				Type: domain.FieldTypeDouble, Length: 8, IsNullable: true, Editable: true,
			}),
		},
		Tables: domain.TableDefinitions{
			"AI_Survey": {"Species", "Year", "WTCPUE"},
		},
	}
}

func TestLoad_RestoresTextNulls(t *testing.T) {
	l, s, exportDir := newTestLoader(t, nil, config.LoadModeReplace)
	src := writeSource(t, t.TempDir(), "AI_Survey.csv",
		"Species,Year,WTCPUE\nGadus,2019,1.5\n,2020,2.5\nSebastes,2021,NA\n")
	ctx := context.Background()

	sum, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "AI_Survey", sum.Entity)
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, int64(1), sum.NullsRestored)
	assert.Equal(t, filepath.Join(exportDir, "AI_Survey.csv"), sum.ExportPath)

	n, err := s.CountRows(ctx, "AI_Survey")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), countWhere(t, s, `SELECT count(*) FROM "AI_Survey" WHERE Species IS NULL`))
	assert.Equal(t, int64(1), countWhere(t, s, `SELECT count(*) FROM "AI_Survey" WHERE WTCPUE IS NULL`))

	fields, err := s.ListFields(ctx, "AI_Survey")
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, domain.FieldTypeInteger, fields[1].Type)
	assert.Equal(t, domain.FieldTypeDouble, fields[2].Type)

	exported, err := os.ReadFile(sum.ExportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(exported)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Species,Year,WTCPUE", lines[0])

	entities, err := s.Walk(ctx)
	require.NoError(t, err)
	for _, e := range entities {
		assert.NotContains(t, e.Name, "_staging_", "staging entity must be deleted")
	}
}

func TestLoad_UsesDefinitionTypes(t *testing.T) {
	l, s, _ := newTestLoader(t, surveyDefinitions(true), config.LoadModeReplace)
	src := writeSource(t, t.TempDir(), "AI_Survey.csv",
		"Unnamed: 0,Species,Year,WTCPUE,Extra\n0,Gadus,2019.0,1.5,x\n1,Sebastes,,2,y\n")
	ctx := context.Background()

	sum, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rows)
	assert.Equal(t, 1, sum.Aliases)

	fields, err := s.ListFields(ctx, "AI_Survey")
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, domain.FieldTypeSmallInteger, fields[1].Type)
	assert.Equal(t, "Species Name", fields[0].AliasName)

	assert.Equal(t, int64(1), countWhere(t, s, `SELECT count(*) FROM "AI_Survey" WHERE Year = 2019`))
	assert.Equal(t, int64(1), countWhere(t, s, `SELECT count(*) FROM "AI_Survey" WHERE Year IS NULL`))
}

func TestLoad_NonTextBlanksBecomeNull(t *testing.T) {
	field := func(name string, ft domain.FieldType) domain.FieldDefinition {
		return domain.NewFieldDefinition(domain.Field{
			Name: name, AliasName: name, BaseName: name, Type: ft, IsNullable: true, Editable: true,
		})
	}
	defs := &domain.Definitions{
		Fields: domain.FieldDefinitions{
			"Species":    field("Species", domain.FieldTypeString),
			"GlobalID":   field("GlobalID", domain.FieldTypeGUID),
			"SurveyDate": field("SurveyDate", domain.FieldTypeDate),
			"Depth":      field("Depth", domain.FieldTypeSingle),
		},
		Tables: domain.TableDefinitions{
			"GMEX_Survey": {"Species", "GlobalID", "SurveyDate", "Depth"},
		},
	}
	l, s, _ := newTestLoader(t, defs, config.LoadModeReplace)
	first, second := uuid.New(), uuid.New()
	src := writeSource(t, t.TempDir(), "GMEX_Survey.csv",
		"Species,GlobalID,SurveyDate,Depth\n"+
			"Gadus,{"+first.String()+"},2019-06-01,12.5\n"+
			"Sebastes,,,\n"+
			","+second.String()+",6/2/2019,\n")
	ctx := context.Background()

	sum, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, int64(1), sum.NullsRestored, "only the text field is rewritten")

	fields, err := s.ListFields(ctx, "GMEX_Survey")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	assert.Equal(t, domain.FieldTypeGUID, fields[1].Type)
	assert.Equal(t, domain.FieldTypeDate, fields[2].Type)
	assert.Equal(t, domain.FieldTypeSingle, fields[3].Type)

	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"text nulls", `SELECT count(*) FROM "GMEX_Survey" WHERE "Species" IS NULL`, 1},
		{"guid nulls", `SELECT count(*) FROM "GMEX_Survey" WHERE "GlobalID" IS NULL`, 1},
		{"date nulls", `SELECT count(*) FROM "GMEX_Survey" WHERE "SurveyDate" IS NULL`, 1},
		{"single nulls", `SELECT count(*) FROM "GMEX_Survey" WHERE "Depth" IS NULL`, 2},
		{"braced guid stored", `SELECT count(*) FROM "GMEX_Survey" WHERE CAST("GlobalID" AS VARCHAR) = '` + first.String() + `'`, 1},
		{"bare guid stored", `SELECT count(*) FROM "GMEX_Survey" WHERE CAST("GlobalID" AS VARCHAR) = '` + second.String() + `'`, 1},
		{"iso date stored", `SELECT count(*) FROM "GMEX_Survey" WHERE "SurveyDate" = TIMESTAMP '2019-06-01 00:00:00'`, 1},
		{"us date stored", `SELECT count(*) FROM "GMEX_Survey" WHERE "SurveyDate" = TIMESTAMP '2019-06-02 00:00:00'`, 1},
		{"single stored", `SELECT count(*) FROM "GMEX_Survey" WHERE "Depth" = 12.5`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countWhere(t, s, tt.query))
		})
	}
}

func TestLoad_TypeCoercionFailure(t *testing.T) {
	l, s, _ := newTestLoader(t, surveyDefinitions(true), config.LoadModeReplace)
	src := writeSource(t, t.TempDir(), "AI_Survey.csv",
		"Species,Year,WTCPUE\nGadus,2019,1.5\nSebastes,unknown,2\n")

	_, err := l.Load(context.Background(), src)
	require.Error(t, err)

	var coerceErr *domain.TypeCoercionError
	require.ErrorAs(t, err, &coerceErr)
	assert.Equal(t, "Year", coerceErr.Field)
	assert.Equal(t, 2, coerceErr.Row)
	assert.Equal(t, "unknown", coerceErr.Value)

	var numErr *strconv.NumError
	assert.ErrorAs(t, err, &numErr, "original parse error must be preserved")

	n, err := s.CountRows(context.Background(), "AI_Survey")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoad_PartialWriteLeavesStaging(t *testing.T) {
	l, s, _ := newTestLoader(t, surveyDefinitions(false), config.LoadModeReplace)
	src := writeSource(t, t.TempDir(), "AI_Survey.csv",
		"Species,Year,WTCPUE\nGadus,,1.5\n")
	ctx := context.Background()

	_, err := l.Load(ctx, src)
	require.Error(t, err)

	var partial *domain.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.True(t, strings.HasPrefix(partial.Staging, "AI_Survey_staging_"))

	ok, err := s.Exists(ctx, partial.Staging)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoad_BulkLoadFailureReportsStaging(t *testing.T) {
	var created []string
	ms := &testutil.MockStore{
		ExistsFn: func(context.Context, string) (bool, error) { return false, nil },
		CreateEntityFn: func(_ context.Context, entity string, fields []domain.Field) error {
			created = append(created, entity)
			return nil
		},
		BulkLoadFn: func(context.Context, string, [][]any) error { return errors.New("appender closed") },
	}
	l := New(ms, nil, Options{ExportDir: t.TempDir()}, slog.New(slog.DiscardHandler))
	src := writeSource(t, t.TempDir(), "AI_Survey.csv", "Species\nGadus\n")

	_, err := l.Load(context.Background(), src)

	var partial *domain.PartialWriteError
	require.ErrorAs(t, err, &partial)
	require.Len(t, created, 2)
	assert.Equal(t, "AI_Survey", created[0])
	assert.Equal(t, created[1], partial.Staging)
	assert.Contains(t, err.Error(), "appender closed")
	assert.False(t, ms.Called("DeleteEntity"), "staging must be left behind")
	assert.False(t, ms.Called("CopyRows"))
}

func TestLoad_NullRestoreFailureReportsStaging(t *testing.T) {
	var nulled []string
	ms := &testutil.MockStore{
		ExistsFn:       func(context.Context, string) (bool, error) { return false, nil },
		CreateEntityFn: func(context.Context, string, []domain.Field) error { return nil },
		BulkLoadFn:     func(context.Context, string, [][]any) error { return nil },
		NullEmptyStringsFn: func(_ context.Context, _, field string) (int64, error) {
			nulled = append(nulled, field)
			return 0, errors.New("rows affected unavailable")
		},
	}
	l := New(ms, nil, Options{ExportDir: t.TempDir()}, slog.New(slog.DiscardHandler))
	src := writeSource(t, t.TempDir(), "AI_Survey.csv", "Species,Year\n,2019\n")

	_, err := l.Load(context.Background(), src)

	var partial *domain.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.True(t, strings.HasPrefix(partial.Staging, "AI_Survey_staging_"))
	assert.Contains(t, err.Error(), "rows affected unavailable")
	assert.Equal(t, []string{"Species"}, nulled, "only text fields are rewritten")
	assert.False(t, ms.Called("CopyRows"))
}

func TestLoad_Modes(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want int64
	}{
		{name: "replace", mode: config.LoadModeReplace, want: 2},
		{name: "append", mode: config.LoadModeAppend, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, s, _ := newTestLoader(t, nil, tt.mode)
			src := writeSource(t, t.TempDir(), "AI_Survey.csv", "Species,Year\nGadus,2019\nSebastes,2020\n")
			ctx := context.Background()

			_, err := l.Load(ctx, src)
			require.NoError(t, err)
			_, err = l.Load(ctx, src)
			require.NoError(t, err)

			n, err := s.CountRows(ctx, "AI_Survey")
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestLoad_ImportsMetadata(t *testing.T) {
	l, s, _ := newTestLoader(t, nil, config.LoadModeReplace)
	dir := t.TempDir()
	src := writeSource(t, dir, "AI_Survey.csv", "Species\nGadus\n")
	writeSource(t, dir, "AI_Survey.xml", `<?xml version="1.0"?>
<metadata>
  <dataIdInfo>
    <idCitation><resTitle>Aleutian Islands Survey</resTitle></idCitation>
    <idAbs>Interpolated biomass.</idAbs>
    <idPurp>Distribution mapping.</idPurp>
  </dataIdInfo>
</metadata>`)
	ctx := context.Background()

	sum, err := l.Load(ctx, src)
	require.NoError(t, err)
	assert.True(t, sum.Metadata)

	var comment string
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT comment FROM duckdb_tables() WHERE table_name = 'AI_Survey'`).Scan(&comment))
	assert.Contains(t, comment, "Aleutian Islands Survey")
	assert.Contains(t, comment, "Distribution mapping.")
}

func TestLoad_MissingSource(t *testing.T) {
	l, _, _ := newTestLoader(t, nil, config.LoadModeReplace)
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))

	var missing *domain.MissingResourceError
	assert.True(t, errors.As(err, &missing))
}

func TestLoad_SourceMissingDefinedField(t *testing.T) {
	l, _, _ := newTestLoader(t, surveyDefinitions(true), config.LoadModeReplace)
	src := writeSource(t, t.TempDir(), "AI_Survey.csv", "Species,Year\nGadus,2019\n")

	_, err := l.Load(context.Background(), src)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "WTCPUE")
}

func TestCoerce(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		in      string
		ft      domain.FieldType
		want    any
		wantErr bool
	}{
		{name: "text keeps empty", in: "", ft: domain.FieldTypeString, want: ""},
		{name: "empty integer is null", in: "", ft: domain.FieldTypeInteger, want: nil},
		{name: "integer", in: "42", ft: domain.FieldTypeInteger, want: int64(42)},
		{name: "integral float to integer", in: "2019.0", ft: domain.FieldTypeInteger, want: int64(2019)},
		{name: "fractional float to integer", in: "1.5", ft: domain.FieldTypeInteger, wantErr: true},
		{name: "bool to small integer", in: "True", ft: domain.FieldTypeSmallInteger, want: int16(1)},
		{name: "small integer overflow", in: "70000", ft: domain.FieldTypeSmallInteger, wantErr: true},
		{name: "double", in: "1.25", ft: domain.FieldTypeDouble, want: 1.25},
		{name: "single", in: "0.5", ft: domain.FieldTypeSingle, want: float32(0.5)},
		{name: "date", in: "2021-06-01", ft: domain.FieldTypeDate, want: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "bad date", in: "June", ft: domain.FieldTypeDate, wantErr: true},
		{name: "guid with braces", in: "{" + id.String() + "}", ft: domain.FieldTypeGUID, want: id},
		{name: "bad double", in: "abc", ft: domain.FieldTypeDouble, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.in, tt.ft)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStagingName(t *testing.T) {
	a, b := StagingName("AI_IDW"), StagingName("AI_IDW")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "AI_IDW_staging_"))
	assert.Len(t, strings.TrimPrefix(a, "AI_IDW_staging_"), 8)
	assert.Equal(t, "AI_IDW", EntityName("/data/CSV Data/AI_IDW.csv"))
}
