package factory

import (
	"errors"
	"net/url"
	"strings"

	"github.com/loykin/opsgate/internal/audit"
	"github.com/loykin/opsgate/internal/audit/clickhouse"
	"github.com/loykin/opsgate/internal/audit/sqlite"
)

// NewSinkFromDSN creates an audit sink based on DSN format.
// Supported formats:
//   - "clickhouse://host:port?table=table"
//   - "sqlite:///path/to/file.db" or "sqlite://:memory:"
//   - "/path/to/file.db" (defaults to SQLite)
func NewSinkFromDSN(dsn string) (audit.Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	lower := strings.ToLower(dsn)

	if strings.HasPrefix(lower, "clickhouse://") {
		return parseClickHouseDSN(dsn)
	}

	if strings.HasPrefix(lower, "sqlite://") || !strings.Contains(dsn, "://") {
		return sqlite.New(dsn)
	}

	return nil, errors.New("unsupported DSN format: " + dsn)
}

func parseClickHouseDSN(dsn string) (audit.Sink, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}

	host := u.Host
	if host == "" {
		host = "localhost:9000" // default ClickHouse native port
	}

	table := u.Query().Get("table")
	if table == "" {
		table = "opsgate_audit"
	}

	return clickhouse.New(host, table)
}
