// internal/pipeline/query-hrdata/config.go
package queryhrdata

import "time"

type Config struct {
	Dialect Dialect
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Dialect: DialectSQLite,
		Timeout: 10 * time.Second,
	}
}
