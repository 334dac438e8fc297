package repositories

import (
	"context"
	"testing"
	"time"

	"PerpTradeBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB starts a disposable postgres and migrates it
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("backtest"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestCandleRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCandleRepository(db)
	ctx := context.Background()

	candles := make([]models.Candle, 5)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = models.Candle{Timestamp: int64(i) * 60_000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 3}
	}
	require.NoError(t, repo.SaveCandles(ctx, "BTCUSDT", models.TimeFrame1m, candles))

	// re-saving updates instead of duplicating
	candles[4].Close = 150
	candles[4].High = 151
	require.NoError(t, repo.SaveCandles(ctx, "BTCUSDT", models.TimeFrame1m, candles[3:]))

	count, err := repo.CountCandles(ctx, "BTCUSDT", models.TimeFrame1m)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	got, err := repo.GetCandles(ctx, "BTCUSDT", models.TimeFrame1m, 60_000, 240_000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(60_000), got[0].Timestamp)
	assert.Equal(t, int64(180_000), got[2].Timestamp)

	latest, err := repo.GetLatestCandle(ctx, "BTCUSDT", models.TimeFrame1m)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 150.0, latest.Close)

	earliest, err := repo.GetEarliestCandle(ctx, "BTCUSDT", models.TimeFrame1m)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.Equal(t, int64(0), earliest.Timestamp)

	missing, err := repo.GetLatestCandle(ctx, "ETHUSDT", models.TimeFrame1m)
	require.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = repo.GetEarliestCandle(ctx, "ETHUSDT", models.TimeFrame1m)
	require.NoError(t, err)
	assert.Nil(t, missing)

	recent, err := repo.GetCandlesByTimeFrame(ctx, "BTCUSDT", models.TimeFrame1m, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(180_000), recent[0].Timestamp)
	assert.Equal(t, int64(240_000), recent[1].Timestamp)

	single := models.Candle{Symbol: "ETHUSDT", TimeFrame: models.TimeFrame1m, Timestamp: 0, Open: 10, High: 11, Low: 9, Close: 10}
	require.NoError(t, repo.Create(ctx, &single))
	assert.Error(t, repo.Create(ctx, nil))

	_, err = repo.GetCandles(ctx, "", models.TimeFrame1m, 0, 1)
	assert.Error(t, err)
}

func TestBacktestPersistence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	runs := NewBacktestRunRepository(db)
	records := NewTradeRecordRepository(db)
	equity := NewEquityRepository(db)

	run := &models.BacktestRun{
		RunID:          "run-1",
		Strategy:       "LEVEL",
		Mode:           "STANDARD",
		Status:         models.BacktestRunStatusCompleted,
		Symbols:        "BTCUSDT",
		Leverage:       2,
		InitialBalance: 1000,
		FinalBalance:   1007.5,
		TotalReturn:    0.75,
	}
	require.NoError(t, runs.Create(ctx, run))
	require.NoError(t, records.CreateBatch(ctx, []models.TradeRecord{
		{RunID: "run-1", Sequence: 1, Symbol: "BTCUSDT", Action: models.TradeActionLong, EntryPrice: 100, ExitPrice: 105, Units: 0.5, PnL: 2.5, Reason: "target", IsPartial: true},
		{RunID: "run-1", Sequence: 0, Symbol: "BTCUSDT", Action: models.TradeActionLong, EntryPrice: 100, ExitPrice: 110, Units: 0.5, PnL: 5, Reason: "target", IsPartial: true, TargetIndex: 1},
	}))
	require.NoError(t, equity.CreateBatch(ctx, []models.EquityPoint{
		{RunID: "run-1", Timestamp: 2, Balance: 1007.5},
		{RunID: "run-1", Timestamp: 1, Balance: 1002.5},
	}))

	found, err := runs.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Leverage)

	fills, err := records.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, 0, fills[0].Sequence)

	total, err := records.GetTotalPnL(ctx, "run-1")
	require.NoError(t, err)
	assert.InDelta(t, 7.5, total, 1e-9)

	curve, err := equity.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, int64(1), curve[0].Timestamp)

	require.NoError(t, runs.Create(ctx, &models.BacktestRun{RunID: "run-2", Strategy: "LEVEL", Status: models.BacktestRunStatusCompleted, TotalReturn: 3.2}))
	require.NoError(t, runs.Create(ctx, &models.BacktestRun{RunID: "run-3", Strategy: "PROMAX", Status: models.BacktestRunStatusCompleted, TotalReturn: 9}))

	recent, err := runs.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	level, err := runs.FindByStrategy(ctx, "LEVEL")
	require.NoError(t, err)
	require.Len(t, level, 2)
	assert.Equal(t, "run-2", level[0].RunID)
	assert.Equal(t, "run-1", level[1].RunID)

	require.NoError(t, runs.Delete(ctx, "run-1"))
	gone, err := runs.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
	fills, err = records.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, fills)
}
