package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSinkFromDSNEmpty(t *testing.T) {
	_, err := NewSinkFromDSN("")
	assert.Error(t, err)
	_, err = NewSinkFromDSN("   ")
	assert.Error(t, err)
}

func TestNewSinkFromDSNUnsupported(t *testing.T) {
	_, err := NewSinkFromDSN("kafka://localhost:9092")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DSN format")
}

func TestNewSinkFromDSNClickHouseUnreachable(t *testing.T) {
	// connecting pings the server, so an unreachable host must error
	_, err := NewSinkFromDSN("clickhouse://default@127.0.0.1:1?database=default&table=events")
	assert.Error(t, err)
}
