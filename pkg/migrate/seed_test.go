package migrate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/migrate"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:seed_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Category{}, &models.Product{}, &models.Customer{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestSeedReferenceDataIsIdempotent(t *testing.T) {
	conn := newSeedDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	require.NoError(t, migrate.SeedReferenceData(context.Background(), sqlDB))
	require.NoError(t, migrate.SeedReferenceData(context.Background(), sqlDB))

	require.EqualValues(t, 3, countRows(t, conn, &models.Category{}))
	require.EqualValues(t, 6, countRows(t, conn, &models.Product{}))
	require.EqualValues(t, 2, countRows(t, conn, &models.Customer{}))

	var outOfStock int64
	require.NoError(t, conn.Model(&models.Product{}).Where("stock = 0").Count(&outOfStock).Error)
	require.EqualValues(t, 2, outOfStock)

	var maria models.Customer
	require.NoError(t, conn.Where("email = ?", "maria@email.com").First(&maria).Error)
	require.True(t, maria.IsActive)
}

func TestMaybeRunDevHonoursFlags(t *testing.T) {
	cases := []struct {
		name   string
		env    string
		flags  config.FeatureFlagsConfig
		seeded bool
	}{
		{name: "flags off", env: config.AppEnvDev},
		{name: "seed in prod ignored", env: config.AppEnvProd, flags: config.FeatureFlagsConfig{SeedReferenceData: true}},
		{name: "seed in dev", env: config.AppEnvDev, flags: config.FeatureFlagsConfig{SeedReferenceData: true}, seeded: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := newSeedDB(t)
			cfg := &config.Config{
				App:          config.AppConfig{Env: tc.env},
				FeatureFlags: tc.flags,
			}

			err := migrate.MaybeRunDev(context.Background(), cfg, logger.Nop(), db.NewFromConn(conn, 0))
			require.NoError(t, err)

			want := int64(0)
			if tc.seeded {
				want = 6
			}
			require.Equal(t, want, countRows(t, conn, &models.Product{}))
		})
	}
}
