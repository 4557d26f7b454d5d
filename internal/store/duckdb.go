// Package store implements the structured-store collaborator on top of a
// DuckDB database file.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// DuckStore is a domain.Store backed by a single DuckDB file. It holds one
// connection; the pipeline assumes exclusive access for the duration of a run.
type DuckStore struct {
	db   *sql.DB
	path string
}

var _ domain.Store = (*DuckStore)(nil)

// Open opens (or creates) the DuckDB store at path. With mustExist set, a
// missing file is reported as a MissingResourceError instead of being created.
func Open(ctx context.Context, path string, mustExist bool) (*DuckStore, error) {
	if mustExist {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, domain.ErrMissingResource("store %q not found", path)
			}
			return nil, errors.Wrap(err, "stat store")
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store parent directory")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping duckdb")
	}
	return &DuckStore{db: db, path: path}, nil
}

// Close releases the underlying connection.
func (s *DuckStore) Close() error { return s.db.Close() }

// Path returns the store file location.
func (s *DuckStore) Path() string { return s.path }

// DB exposes the connection for tests and ad-hoc fixtures.
func (s *DuckStore) DB() *sql.DB { return s.db }

// Walk lists all tables and views across every user schema.
func (s *DuckStore) Walk(ctx context.Context) ([]domain.Entity, error) {
	spatial, err := s.spatialTables(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_name, table_schema`)
	if err != nil {
		return nil, errors.Wrap(err, "walk store")
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Entity
	seen := make(map[string]struct{})
	for rows.Next() {
		var schema, name, tableType string
		if err := rows.Scan(&schema, &name, &tableType); err != nil {
			return nil, errors.Wrap(err, "scan entity")
		}
		// Entity names are unique within the store; the first schema wins.
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		dt := domain.DataTypeTable
		switch {
		case tableType == "VIEW":
			dt = domain.DataTypeView
		case spatial[schema+"."+name]:
			dt = domain.DataTypeFeatureClass
		}
		out = append(out, domain.Entity{Name: name, Schema: schema, DataType: dt})
	}
	return out, rows.Err()
}

func (s *DuckStore) spatialTables(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT table_schema, table_name
		FROM information_schema.columns
		WHERE table_catalog = current_database()
		  AND (data_type = 'GEOMETRY' OR (lower(column_name) = 'shape' AND data_type = 'BLOB'))`)
	if err != nil {
		return nil, errors.Wrap(err, "find spatial tables")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]bool)
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, errors.Wrap(err, "scan spatial table")
		}
		out[schema+"."+name] = true
	}
	return out, rows.Err()
}

// ListFields returns the columns of entity in column order.
func (s *DuckStore) ListFields(ctx context.Context, entity string) ([]domain.Field, error) {
	schema, _, err := s.locate(ctx, entity)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, comment,
		       character_maximum_length, numeric_precision, numeric_scale
		FROM duckdb_columns()
		WHERE database_name = current_database()
		  AND schema_name = ? AND table_name = ?
		ORDER BY column_index`, schema, entity)
	if err != nil {
		return nil, errors.Wrapf(err, "list fields of %q", entity)
	}
	defer rows.Close() //nolint:errcheck

	var fields []domain.Field
	for rows.Next() {
		var (
			c       columnInfo
			def     sql.NullString
			comment sql.NullString
		)
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &def, &comment,
			&c.CharMaxLength, &c.NumericPrecision, &c.NumericScale); err != nil {
			return nil, errors.Wrapf(err, "scan field of %q", entity)
		}
		f := c.toField()
		if def.Valid {
			v := def.String
			f.DefaultValue = &v
		}
		if comment.Valid && comment.String != "" {
			f.AliasName = comment.String
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// Exists reports whether entity is present in the store.
func (s *DuckStore) Exists(ctx context.Context, entity string) (bool, error) {
	_, _, err := s.locate(ctx, entity)
	if err == nil {
		return true, nil
	}
	var missing *domain.MissingResourceError
	if errors.As(err, &missing) {
		return false, nil
	}
	return false, err
}

// CreateEntity creates an empty table named entity in the main schema.
func (s *DuckStore) CreateEntity(ctx context.Context, entity string, fields []domain.Field) error {
	if len(fields) == 0 {
		return domain.ErrValidation("create %q: no fields", entity)
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		col := quoteIdent(f.Name) + " " + nativeType(f)
		if !f.IsNullable {
			col += " NOT NULL"
		}
		if f.DefaultValue != nil && *f.DefaultValue != "" {
			col += " DEFAULT " + *f.DefaultValue
		}
		cols[i] = col
	}
	q := fmt.Sprintf("CREATE TABLE main.%s (%s)", quoteIdent(entity), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return classifyDuckDBError(errors.Wrapf(err, "create %q", entity))
	}
	return nil
}

// DeleteEntity drops entity. A missing entity is not an error.
func (s *DuckStore) DeleteEntity(ctx context.Context, entity string) error {
	schema, tableType, err := s.locate(ctx, entity)
	if err != nil {
		var missing *domain.MissingResourceError
		if errors.As(err, &missing) {
			return nil
		}
		return err
	}
	kind := "TABLE"
	if tableType == "VIEW" {
		kind = "VIEW"
	}
	q := fmt.Sprintf("DROP %s %s.%s", kind, quoteIdent(schema), quoteIdent(entity))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "delete %q", entity)
	}
	return nil
}

// CopyRows appends the rows of src into dst by column name.
func (s *DuckStore) CopyRows(ctx context.Context, src, dst string) error {
	srcRef, err := s.ref(ctx, src)
	if err != nil {
		return err
	}
	dstRef, err := s.ref(ctx, dst)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s BY NAME SELECT * FROM %s", dstRef, srcRef)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return classifyDuckDBError(errors.Wrapf(err, "copy %q into %q", src, dst))
	}
	return nil
}

// BulkLoad appends rows through the DuckDB appender. Values must already be
// of the Go type matching each column (see domain field type mapping).
func (s *DuckStore) BulkLoad(ctx context.Context, entity string, rows [][]any) error {
	schema, _, err := s.locate(ctx, entity)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "open duckdb conn")
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return errors.Errorf("unexpected raw conn type %T", raw)
		}
		appender, err := duckdb.NewAppenderFromConn(driverConn, schema, entity)
		if err != nil {
			return errors.Wrapf(err, "create appender for %q", entity)
		}
		for i, row := range rows {
			if err := appender.AppendRow(toDriverValues(row)...); err != nil {
				_ = appender.Close()
				return errors.Wrapf(err, "append row %d to %q", i+1, entity)
			}
		}
		if err := appender.Close(); err != nil {
			return errors.Wrapf(err, "flush appender for %q", entity)
		}
		return nil
	})
}

// NullEmptyStrings sets field to NULL wherever it holds the empty string.
func (s *DuckStore) NullEmptyStrings(ctx context.Context, entity, field string) (int64, error) {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return 0, err
	}
	col := quoteIdent(field)
	q := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ''", ref, col, col)
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, errors.Wrapf(err, "null empty strings in %q.%q", entity, field)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "count nulled rows in %q.%q", entity, field)
	}
	return n, nil
}

// CountRows returns the number of records in entity.
func (s *DuckStore) CountRows(ctx context.Context, entity string) (int64, error) {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+ref).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %q", entity)
	}
	return n, nil
}

// SearchColumn returns the distinct non-null values of column, as text, sorted.
func (s *DuckStore) SearchColumn(ctx context.Context, entity, column string) ([]string, error) {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return nil, err
	}
	col := quoteIdent(column)
	q := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1", col, ref, col)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classifyDuckDBError(errors.Wrapf(err, "search %q.%q", entity, column))
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrapf(err, "scan %q.%q", entity, column)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ExportCSV writes entity to a comma-delimited file with a header row.
func (s *DuckStore) ExportCSV(ctx context.Context, entity, path string) error {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create export directory")
	}
	q := fmt.Sprintf("COPY %s TO %s (HEADER, DELIMITER ',')", ref, quoteLiteral(path))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "export %q", entity)
	}
	return nil
}

// AlterFieldAlias records alias as the column comment of field.
func (s *DuckStore) AlterFieldAlias(ctx context.Context, entity, field, alias string) error {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", ref, quoteIdent(field), quoteLiteral(alias))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return classifyDuckDBError(errors.Wrapf(err, "alter field %q.%q", entity, field))
	}
	return nil
}

// ImportMetadata stores md as the table comment of entity.
func (s *DuckStore) ImportMetadata(ctx context.Context, entity string, md domain.Metadata) error {
	ref, err := s.ref(ctx, entity)
	if err != nil {
		return err
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{md.Title, md.Purpose, md.Abstract} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	q := fmt.Sprintf("COMMENT ON TABLE %s IS %s", ref, quoteLiteral(strings.Join(parts, "\n\n")))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "import metadata for %q", entity)
	}
	return nil
}

// Compact checkpoints the write-ahead log into the database file.
func (s *DuckStore) Compact(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return errors.Wrap(err, "compact store")
	}
	return nil
}

// locate returns the schema and table type of entity.
func (s *DuckStore) locate(ctx context.Context, entity string) (schema, tableType string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT table_schema, table_type
		FROM information_schema.tables
		WHERE table_catalog = current_database()
		  AND table_schema NOT IN ('information_schema', 'pg_catalog')
		  AND table_name = ?
		ORDER BY table_schema
		LIMIT 1`, entity).Scan(&schema, &tableType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", domain.ErrMissingResource("entity %q not found in %s", entity, s.path)
	}
	if err != nil {
		return "", "", errors.Wrapf(err, "locate %q", entity)
	}
	return schema, tableType, nil
}

func (s *DuckStore) ref(ctx context.Context, entity string) (string, error) {
	schema, _, err := s.locate(ctx, entity)
	if err != nil {
		return "", err
	}
	return quoteIdent(schema) + "." + quoteIdent(entity), nil
}

func toDriverValues(row []any) []driver.Value {
	out := make([]driver.Value, len(row))
	for i, v := range row {
		if u, ok := v.(uuid.UUID); ok {
			out[i] = duckdb.UUID(u)
			continue
		}
		out[i] = v
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// classifyDuckDBError maps DuckDB errors into domain errors.
func classifyDuckDBError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found in FROM clause"):
		return &domain.MissingResourceError{Message: msg, Cause: err}
	case strings.Contains(msg, "Conversion Error"),
		strings.Contains(msg, "Could not convert"):
		return &domain.ValidationError{Message: msg, Cause: err}
	default:
		return err
	}
}
