package queryhrdata

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the SQL flavour of the dataset store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a database driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites ? placeholders to $n for PostgreSQL. Statements built here
// never carry string literals, so every ? is a placeholder.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// percent renders num/den*100 rounded to two decimals, 0 on an empty group.
func (d Dialect) percent(num, den string) string {
	ratio := fmt.Sprintf("CAST(%s AS FLOAT) / %s * 100", num, den)
	if d == DialectPostgres {
		// ROUND(x, n) only accepts numeric on PostgreSQL
		ratio = fmt.Sprintf("CAST(%s AS NUMERIC)", ratio)
	}
	return fmt.Sprintf("CASE WHEN %s > 0 THEN ROUND(%s, 2) ELSE 0 END", den, ratio)
}

func (d Dialect) turnover() string {
	return d.percent("SUM(firecount)", "COUNT(*)")
}
