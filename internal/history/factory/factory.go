package factory

import (
	"errors"
	"net/url"
	"strings"

	"github.com/loykin/deskpipe/internal/history"
	"github.com/loykin/deskpipe/internal/history/clickhouse"
)

// NewSinkFromDSN creates a history sink based on DSN format.
// Supported:
//   - "clickhouse://[user[:pass]@]host:port?database=db&table=table"
func NewSinkFromDSN(dsn string) (history.Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "clickhouse://") {
		return parseClickHouseDSN(dsn)
	}
	return nil, errors.New("unsupported DSN format: " + dsn)
}

func parseClickHouseDSN(dsn string) (history.Sink, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	host := u.Host
	if host == "" {
		host = "localhost:9000" // default ClickHouse native port
	}
	table := u.Query().Get("table")
	database := u.Query().Get("database")
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if user == "" {
		user = "default"
	}
	return clickhouse.New(host, database, user, pass, table)
}
