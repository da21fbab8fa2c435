package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverAndDSN(t *testing.T) {
	driver, dsn := driverAndDSN(&config.DatabaseConfig{URL: "postgres://u:p@db:5432/erp"})
	assert.Equal(t, "pgx", driver)
	assert.Equal(t, "postgres://u:p@db:5432/erp", dsn)

	driver, dsn = driverAndDSN(&config.DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "erp", SSLMode: "disable",
	})
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=erp sslmode=disable", dsn)
}

func TestSalesBucket(t *testing.T) {
	assert.Equal(t, "day", salesBucket(domain.GranularityDaily))
	assert.Equal(t, "week", salesBucket(domain.GranularityWeekly))
	assert.Equal(t, "day", salesBucket(""))
}

func TestStockRowToDomain(t *testing.T) {
	row := stockRow{
		SKU:      "SKU-1",
		Category: sql.NullString{String: "Garden", Valid: true},
		Stock:    -3,
		UnitCost: decimal.RequireFromString("12.50"),
	}
	snap := row.toDomain()
	assert.Equal(t, domain.SKU("SKU-1"), snap.SKU)
	assert.Equal(t, "Garden", snap.Category)
	assert.Zero(t, snap.QuantityOnHand, "negative ERP stock is clamped")
	assert.True(t, decimal.RequireFromString("12.5").Equal(snap.UnitCost))
}

func TestLeadTimeDays(t *testing.T) {
	days, err := leadTimeDays(sql.NullFloat64{Float64: 6.2, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, 7, days)

	_, err = leadTimeDays(sql.NullFloat64{})
	assert.Error(t, err)
}

func TestRunRowToDomain(t *testing.T) {
	started := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)
	row := runRow{
		RunID:      "8b1f6a53-4c1e-4a70-9d0e-0d4f6f1b2c3d",
		Kind:       string(domain.RunKindWeeklySurstock),
		Status:     string(domain.RunStatusDegraded),
		StartedAt:  started,
		FinishedAt: sql.NullTime{Time: started.Add(time.Minute), Valid: true},
		Artifacts:  []byte(`{"errors":[{"stage":"liquidation","port":"liquidation","message":"boom","at":"2026-10-16T06:00:30Z"}]}`),
	}

	record, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.RunKindWeeklySurstock, record.Kind)
	assert.Equal(t, time.Minute, record.Duration())
	require.Len(t, record.Artifacts.Errors, 1)
	assert.Equal(t, "liquidation", record.Artifacts.Errors[0].Stage)

	row.Artifacts = []byte("{")
	_, err = row.toDomain()
	assert.Error(t, err)
}
