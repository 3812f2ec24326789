package queryhrdata

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"hr-assistant/internal/models"
	"hr-assistant/internal/vocabulary"
)

// Catalog reads table metadata and distinct column values from the dataset
// store. It backs the vocabulary Store and Cache.
type Catalog struct {
	db      *sql.DB
	dialect Dialect
}

func NewCatalog(db *sql.DB, dialect Dialect) *Catalog {
	return &Catalog{db: db, dialect: dialect}
}

var _ vocabulary.Catalog = (*Catalog)(nil)

func (c *Catalog) TableColumns(ctx context.Context) ([]vocabulary.ColumnInfo, error) {
	if c.dialect == DialectPostgres {
		return c.postgresColumns(ctx)
	}
	return c.sqliteColumns(ctx)
}

func (c *Catalog) sqliteColumns(ctx context.Context) ([]vocabulary.ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA table_info("+models.TableName+")")
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var out []vocabulary.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		out = append(out, vocabulary.ColumnInfo{Name: name, Type: colType, Numeric: numericType(colType)})
	}
	return out, rows.Err()
}

func (c *Catalog) postgresColumns(ctx context.Context) ([]vocabulary.ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`, models.TableName)
	if err != nil {
		return nil, fmt.Errorf("information schema: %w", err)
	}
	defer rows.Close()

	var out []vocabulary.ColumnInfo
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan information schema: %w", err)
		}
		out = append(out, vocabulary.ColumnInfo{Name: name, Type: dataType, Numeric: numericType(dataType)})
	}
	return out, rows.Err()
}

// ColumnType returns the declared type of an allow-listed column, "" when
// the table lacks it.
func (c *Catalog) ColumnType(ctx context.Context, column models.Column) (string, error) {
	infos, err := c.TableColumns(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name, string(column)) {
			return info.Type, nil
		}
	}
	return "", nil
}

// DistinctValues lists the non-null values of a column in sorted order.
func (c *Catalog) DistinctValues(ctx context.Context, column models.Column) ([]string, error) {
	col, err := allowed(column)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s", col, models.TableName)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", col, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", col, err)
		}
		if s := valueString(v); s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func numericType(t string) bool {
	t = strings.ToUpper(t)
	for _, marker := range []string{"INT", "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL"} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}
