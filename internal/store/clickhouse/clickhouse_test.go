package clickhouse

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quarterfeat/internal/model"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "feat", User: "u", Password: "p",
		DialTimeout: 5 * time.Second,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/feat?dial_timeout=5s", dsn)

	dsn = buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "d", User: "u", UseHTTP: true})
	assert.Equal(t, "http://u:@ch:8123/d", dsn)
}

func TestBuildInsert(t *testing.T) {
	end := time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	q, args := buildInsert("qf", []model.WindowRecord{
		{CompanyID: "ACME", EndDate: end, ClosePrice: 10, StdPrice: math.NaN()},
	})

	assert.True(t, strings.HasPrefix(q, "INSERT INTO qf (company, end_date, metric, value) VALUES (?, ?, ?, ?),"))
	assert.Equal(t, len(model.MetricNames), strings.Count(q, "(?, ?, ?, ?)"))
	assert.Len(t, args, 4*len(model.MetricNames))

	assert.Equal(t, []any{"ACME", end, "ClosePrice", 10.0}, args[0:4])
	// StdPrice is the fourth metric.
	assert.Equal(t, "StdPrice", args[3*4+2])
	assert.Nil(t, args[3*4+3])
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements("quarter_features")
	assert.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS quarter_features")
	assert.Contains(t, stmts[0], "Nullable(Float64)")
}
