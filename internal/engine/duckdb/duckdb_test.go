package duckdb

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"duckpond/internal/engine"
	"duckpond/internal/frame"
)

func TestInitStatements(t *testing.T) {
	cfg := engine.Config{
		S3: engine.S3Config{
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			Endpoint:        "localhost:4566",
			URLStyle:        "path",
		},
		Setup: []string{"SET threads = 2"},
	}
	assert.Equal(t, []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		"SET s3_access_key_id = 'test'",
		"SET s3_secret_access_key = 'test'",
		"SET s3_endpoint = 'localhost:4566'",
		"SET s3_url_style = 'path'",
		"SET s3_use_ssl = false",
		"SET threads = 2",
	}, InitStatements(cfg))

	assert.Empty(t, InitStatements(engine.Config{}))
}

func TestScanValue(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, int64(42), d.ScanValue(big.NewInt(42)))

	huge, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	assert.Equal(t, "170141183460469231731687303715884105727", d.ScanValue(huge))

	assert.Equal(t, "x", d.ScanValue("x"))
}

func TestMapType(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "BIGINT", d.MapType(frame.Integer))
	assert.Equal(t, "DOUBLE", d.MapType(frame.Real))
	assert.Equal(t, "VARCHAR", d.MapType(frame.Text))
	assert.Equal(t, "DATE", d.MapType(frame.Date))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "SET s3_secret_access_key = '***'", redact("SET s3_secret_access_key = 'hunter2'"))
	assert.Equal(t, "LOAD httpfs", redact("LOAD httpfs"))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, engine.Dialects(), "duckdb")
}
