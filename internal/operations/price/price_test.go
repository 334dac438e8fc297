package price

import (
	"context"
	"errors"
	"testing"

	"PerpTradeBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetCandles(ctx context.Context, symbol, timeFrame string, start, end int64) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, timeFrame, start, end)
	candles, _ := args.Get(0).([]models.Candle)
	return candles, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveCandles(ctx context.Context, symbol, timeFrame string, candles []models.Candle) error {
	return m.Called(ctx, symbol, timeFrame, candles).Error(0)
}

func (m *mockStore) GetLatestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error) {
	args := m.Called(ctx, symbol, timeFrame)
	latest, _ := args.Get(0).(*models.Candle)
	return latest, args.Error(1)
}

func (m *mockStore) GetEarliestCandle(ctx context.Context, symbol, timeFrame string) (*models.Candle, error) {
	args := m.Called(ctx, symbol, timeFrame)
	earliest, _ := args.Get(0).(*models.Candle)
	return earliest, args.Error(1)
}

func at(ts int64, close float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: close, High: close, Low: close, Close: close}
}

func TestNormalize(t *testing.T) {
	in := []models.Candle{at(3, 1), at(1, 1), at(2, 1), at(3, 2)}
	out, dropped := Normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int64{1, 2, 3}, []int64{out[0].Timestamp, out[1].Timestamp, out[2].Timestamp})
	assert.Equal(t, 2.0, out[2].Close)
	assert.Equal(t, int64(3), in[0].Timestamp, "input must not be reordered")
	out, dropped = Normalize(nil)
	assert.Nil(t, out)
	assert.Zero(t, dropped)

	out, dropped = Normalize([]models.Candle{at(5, 1), at(5, 2), at(5, 3), at(6, 1)})
	require.Len(t, out, 2)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 3.0, out[0].Close)
}

func TestLoadCandles(t *testing.T) {
	source := new(mockSource)
	source.On("GetCandles", mock.Anything, "BTCUSDT", models.TimeFrame1h, int64(0), int64(100)).
		Return([]models.Candle{at(2, 1), at(1, 1)}, nil)
	source.On("GetCandles", mock.Anything, "ETHUSDT", models.TimeFrame1h, int64(0), int64(100)).
		Return([]models.Candle{}, nil)

	data, err := NewLoader(source, 2).LoadCandles(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, models.TimeFrame1h, 0, 100)
	require.NoError(t, err)

	assert.Len(t, data, 1)
	require.Len(t, data["BTCUSDT"], 2)
	assert.Equal(t, int64(1), data["BTCUSDT"][0].Timestamp)
	source.AssertExpectations(t)
}

func TestLoadCandlesFails(t *testing.T) {
	boom := errors.New("exchange down")
	source := new(mockSource)
	source.On("GetCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	_, err := NewLoader(source, 0).LoadCandles(context.Background(), []string{"BTCUSDT"}, models.TimeFrame1h, 0, 100)
	assert.ErrorIs(t, err, boom)
}

func TestSyncResumesAfterLatest(t *testing.T) {
	const minute = int64(60_000)
	remote := new(mockSource)
	store := new(mockStore)

	latest := at(10*minute, 1)
	store.On("GetLatestCandle", mock.Anything, "BTCUSDT", models.TimeFrame1m).Return(&latest, nil)
	store.On("GetLatestCandle", mock.Anything, "ETHUSDT", models.TimeFrame1m).Return(nil, nil)
	store.On("GetLatestCandle", mock.Anything, "SOLUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 20 * minute}, nil)
	store.On("GetEarliestCandle", mock.Anything, "BTCUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 0}, nil)
	store.On("GetEarliestCandle", mock.Anything, "SOLUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 0}, nil)

	btc := []models.Candle{at(11*minute, 1), at(12*minute, 1)}
	eth := []models.Candle{at(0, 1)}
	remote.On("GetCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, 11*minute, 20*minute).Return(btc, nil)
	remote.On("GetCandles", mock.Anything, "ETHUSDT", models.TimeFrame1m, int64(0), 20*minute).Return(eth, nil)

	store.On("SaveCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, btc).Return(nil)
	store.On("SaveCandles", mock.Anything, "ETHUSDT", models.TimeFrame1m, eth).Return(nil)

	saved, err := NewSyncer(remote, store, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}).
		Sync(context.Background(), models.TimeFrame1m, 0, 20*minute)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	remote.AssertExpectations(t)
	store.AssertExpectations(t)
	remote.AssertNotCalled(t, "GetCandles", mock.Anything, "SOLUSDT", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncRefetchesWhenStoreStartsLate(t *testing.T) {
	const minute = int64(60_000)
	remote := new(mockSource)
	store := new(mockStore)

	// the store holds minutes 10..12 but the range starts at 0
	store.On("GetLatestCandle", mock.Anything, "BTCUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 12 * minute}, nil)
	store.On("GetEarliestCandle", mock.Anything, "BTCUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 10 * minute}, nil)

	full := []models.Candle{at(0, 1), at(minute, 1), at(13*minute, 1)}
	remote.On("GetCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, int64(0), 20*minute).Return(full, nil).Once()
	store.On("SaveCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, full).Return(nil).Once()

	saved, err := NewSyncer(remote, store, []string{"BTCUSDT"}).Sync(context.Background(), models.TimeFrame1m, 0, 20*minute)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	remote.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSyncStaleStoreSkipsEarliestLookup(t *testing.T) {
	const minute = int64(60_000)
	remote := new(mockSource)
	store := new(mockStore)

	store.On("GetLatestCandle", mock.Anything, "BTCUSDT", models.TimeFrame1m).Return(&models.Candle{Timestamp: 2 * minute}, nil)
	fresh := []models.Candle{at(30*minute, 1)}
	remote.On("GetCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, 30*minute, 40*minute).Return(fresh, nil)
	store.On("SaveCandles", mock.Anything, "BTCUSDT", models.TimeFrame1m, fresh).Return(nil)

	saved, err := NewSyncer(remote, store, []string{"BTCUSDT"}).Sync(context.Background(), models.TimeFrame1m, 30*minute, 40*minute)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	store.AssertNotCalled(t, "GetEarliestCandle", mock.Anything, mock.Anything, mock.Anything)
}
