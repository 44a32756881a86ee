package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitMigrationCreatesTables(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, table := range []string{"tariff_rates", "meter_readings", "payments", "payment_transitions", "service_requests"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, sql, "ux_payments_apartment_period")
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Run(conn, config.Config{DBType: db.TypeSQLite, MigrateOnStart: true}, zap.NewNop()))

	for _, table := range []string{"tariff_rates", "meter_readings", "payments", "payment_transitions", "service_requests"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("payments", "ux_payments_apartment_period"))
}

func TestRunSkipsWhenDisabled(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Run(conn, config.Config{DBType: db.TypeSQLite}, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("payments"))
}
