package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"yqhp/matmul-engine/pkg/types"
)

// dryRunDB opens a connection that renders statements without a server.
func dryRunDB(t *testing.T, dialector gorm.Dialector) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)

	var statements []string
	err = db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	})
	require.NoError(t, err)
	return db, &statements
}

func sampleRecord() types.BenchmarkRecord {
	return types.BenchmarkRecord{
		Algorithm:     "Distributed (gRPC)",
		MatrixSize:    400,
		ExecMs:        120,
		MemMB:         3.5,
		CPUPct:        42.25,
		NodesUsed:     3,
		NetOverheadMs: 17,
		TransferMs:    12,
	}
}

func TestReporterWritesMySQL(t *testing.T) {
	db, statements := dryRunDB(t, mysql.New(mysql.Config{
		DSN:                       "bench:secret@tcp(127.0.0.1:3306)/matmul?parseTime=True",
		SkipInitializeWithVersion: true,
	}))

	r := NewWithDB(db, "", false)
	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.Write(sampleRecord()))
	require.NoError(t, r.Flush(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	require.Len(t, *statements, 1)
	stmt := (*statements)[0]
	assert.Contains(t, stmt, "INSERT INTO `benchmark_results`")
	for _, column := range []string{"`run_id`", "`algorithm`", "`matrix_size`", "`exec_ms`", "`mem_mb`",
		"`cpu_pct`", "`nodes_used`", "`net_overhead_ms`", "`transfer_ms`"} {
		assert.Contains(t, stmt, column)
	}
	assert.Len(t, r.RunID(), 36)
}

func TestReporterWritesPostgresCustomTable(t *testing.T) {
	db, statements := dryRunDB(t, postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=5432 user=bench password=secret dbname=matmul sslmode=disable",
	}))

	r := NewWithDB(db, "runs", false)
	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.Write(sampleRecord()))
	require.NoError(t, r.Write(sampleRecord()))

	require.Len(t, *statements, 2)
	assert.Contains(t, (*statements)[0], `INSERT INTO "runs"`)
}

func TestReporterWriteBeforeInit(t *testing.T) {
	r := New(&Config{Driver: DriverMySQL})
	assert.Error(t, r.Write(sampleRecord()))
	assert.NoError(t, r.Close(context.Background()))
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&Config{Driver: DriverMySQL, Host: "db", Port: 3306, Username: "u", Password: "p", Database: "m"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())
	assert.Equal(t, "u:p@tcp(db:3306)/m?charset=utf8mb4&parseTime=True&loc=Local", d.(*mysql.Dialector).DSN)

	d, err = Dialector(&Config{Driver: DriverPostgres, DSN: "host=db"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, "host=db", d.(*postgres.Dialector).DSN)

	_, err = Dialector(&Config{Driver: "sqlite"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"driver":         "postgres",
		"host":           "db",
		"port":           5432,
		"table":          "runs",
		"auto_migrate":   false,
		"max_open_conns": float64(8),
	})
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "runs", cfg.Table)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 8, cfg.MaxOpenConns)

	def := ConfigFromMap(nil)
	assert.Equal(t, DriverMySQL, def.Driver)
	assert.Equal(t, DefaultTable, def.Table)
	assert.True(t, def.AutoMigrate)
}
