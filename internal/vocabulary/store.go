package vocabulary

import (
	"context"
	"fmt"
	"strings"

	"hr-assistant/internal/models"
)

// ColumnInfo describes one physical column of the dataset table.
type ColumnInfo struct {
	Name    string
	Type    string
	Numeric bool
}

// Catalog exposes storage metadata. It is implemented by the query layer.
type Catalog interface {
	TableColumns(ctx context.Context) ([]ColumnInfo, error)
	DistinctValues(ctx context.Context, column models.Column) ([]string, error)
}

// Store is the immutable vocabulary of a running assistant: which
// allow-listed columns physically exist and whether they hold numbers.
type Store struct {
	columns []models.Column
	numeric map[models.Column]bool
}

// Default builds a Store from the static allow-list alone.
func Default() *Store {
	s := &Store{numeric: map[models.Column]bool{}}
	for _, c := range models.AllowedColumns {
		s.columns = append(s.columns, c)
		s.numeric[c] = c.Numeric()
	}
	return s
}

// Load intersects the table's physical columns with the allow-list.
func Load(ctx context.Context, catalog Catalog) (*Store, error) {
	infos, err := catalog.TableColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table columns: %w", err)
	}

	present := make(map[string]ColumnInfo, len(infos))
	for _, info := range infos {
		present[strings.ToLower(info.Name)] = info
	}

	s := &Store{numeric: map[models.Column]bool{}}
	for _, c := range models.AllowedColumns {
		info, ok := present[string(c)]
		if !ok {
			continue
		}
		s.columns = append(s.columns, c)
		s.numeric[c] = info.Numeric || c.Numeric()
	}
	if len(s.columns) == 0 {
		return nil, fmt.Errorf("table %s has none of the expected columns", models.TableName)
	}
	return s, nil
}

// Columns returns the available columns in allow-list order.
func (s *Store) Columns() []models.Column {
	out := make([]models.Column, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Store) Has(c models.Column) bool {
	_, ok := s.numeric[c]
	return ok
}

// Lookup resolves a raw column name against the available columns.
func (s *Store) Lookup(name string) (models.Column, bool) {
	c, ok := models.ParseColumn(name)
	if !ok || !s.Has(c) {
		return "", false
	}
	return c, true
}

func (s *Store) IsNumeric(c models.Column) bool {
	return s.numeric[c]
}

// ColumnList is the comma-separated list used in validation messages.
func (s *Store) ColumnList() string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
