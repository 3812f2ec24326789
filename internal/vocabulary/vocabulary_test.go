package vocabulary

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/models"
)

// ==========================
// Test helpers
// ==========================

type fakeCatalog struct {
	columns []ColumnInfo
	values  map[models.Column][]string
	err     error
	calls   int32
}

func (f *fakeCatalog) TableColumns(ctx context.Context) ([]ColumnInfo, error) {
	return f.columns, f.err
}

func (f *fakeCatalog) DistinctValues(ctx context.Context, column models.Column) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.values[column], nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		columns: []ColumnInfo{
			{Name: "service", Type: "TEXT"},
			{Name: "location_name", Type: "TEXT"},
			{Name: "fte", Type: "REAL", Numeric: true},
			{Name: "report_date", Type: "TEXT"},
			{Name: "internal_notes", Type: "TEXT"},
		},
		values: map[models.Column][]string{
			models.ColService:  {"Маркет", "Такси", "Маркет", "", "Облако"},
			models.ColLocation: {"Москва, офис", "Дистанционщик"},
		},
	}
}

// ==========================
// Store
// ==========================

func TestLoad_IntersectsAllowList(t *testing.T) {
	store, err := Load(context.Background(), newCatalog())
	require.NoError(t, err)

	assert.Equal(t, []models.Column{models.ColLocation, models.ColService, models.ColFTE, models.ColReportDate}, store.Columns())
	assert.True(t, store.Has(models.ColService))
	assert.False(t, store.Has(models.ColSex), "column missing from table")
	assert.True(t, store.IsNumeric(models.ColFTE))
	assert.False(t, store.IsNumeric(models.ColService))
	assert.Equal(t, "location_name, service, fte, report_date", store.ColumnList())

	_, ok := store.Lookup("internal_notes")
	assert.False(t, ok, "columns outside the allow-list are never exposed")
	c, ok := store.Lookup(" SERVICE ")
	assert.True(t, ok)
	assert.Equal(t, models.ColService, c)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), &fakeCatalog{err: errors.New("no such table")})
	assert.Error(t, err)

	_, err = Load(context.Background(), &fakeCatalog{columns: []ColumnInfo{{Name: "foo"}}})
	assert.Error(t, err)
}

func TestDefault_HasWholeAllowList(t *testing.T) {
	store := Default()
	assert.Len(t, store.Columns(), len(models.AllowedColumns))
	assert.True(t, store.IsNumeric(models.ColFullyears))
}

// ==========================
// Cache
// ==========================

func TestCache_ReadThroughOnce(t *testing.T) {
	cat := newCatalog()
	cache := NewCache(cat, nil, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := cache.Values(ctx, models.ColService)
	require.NoError(t, err)
	assert.Equal(t, []string{"Маркет", "Облако", "Такси"}, first, "deduplicated, sorted, empties dropped")

	second, err := cache.Values(ctx, models.ColService)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cat.calls))
	assert.True(t, cache.Loaded(models.ColService))
	assert.False(t, cache.Loaded(models.ColLocation))
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	cat := newCatalog()
	cat.err = errors.New("database is locked")
	cache := NewCache(cat, nil, logger.NewNoOpLogger())

	_, err := cache.Values(context.Background(), models.ColService)
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeVocabularyLoadFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, cache.Loaded(models.ColService))

	cat.err = nil
	values, err := cache.Values(context.Background(), models.ColService)
	require.NoError(t, err)
	assert.Len(t, values, 3)
}

func TestCache_ConcurrentReaders(t *testing.T) {
	cat := newCatalog()
	cache := NewCache(cat, nil, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	results := make([][]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Values(context.Background(), models.ColLocation)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"Дистанционщик", "Москва, офис"}, r)
	}
}

func TestCache_Warm(t *testing.T) {
	cat := newCatalog()
	cache := NewCache(cat, nil, logger.NewTestLogger(t))

	require.NoError(t, cache.Warm(context.Background(), []models.Column{models.ColService, models.ColLocation}))
	assert.True(t, cache.Loaded(models.ColService))
	assert.True(t, cache.Loaded(models.ColLocation))

	cat.err = errors.New("boom")
	fresh := NewCache(cat, nil, logger.NewNoOpLogger())
	assert.Error(t, fresh.Warm(context.Background(), []models.Column{models.ColService}))
}

// ==========================
// Redis tier
// ==========================

func TestRedisTier_MiniredisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tier := NewRedisTier(client, "test:vocab:", time.Hour)
	ctx := context.Background()

	_, found, err := tier.Get(ctx, models.ColService)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tier.Set(ctx, models.ColService, []string{"Маркет", "Такси"}))
	assert.True(t, mr.Exists("test:vocab:service"))
	assert.Equal(t, time.Hour, mr.TTL("test:vocab:service"))

	values, found, err := tier.Get(ctx, models.ColService)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Маркет", "Такси"}, values)

	mr.FastForward(2 * time.Hour)
	_, found, err = tier.Get(ctx, models.ColService)
	require.NoError(t, err)
	assert.False(t, found, "expired snapshot")
}

func TestCache_ServedFromRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	data, _ := json.Marshal([]string{"Лавка"})
	require.NoError(t, mr.Set("test:vocab:service", string(data)))

	cat := newCatalog()
	cache := NewCache(cat, NewRedisTier(client, "test:vocab:", time.Hour), logger.NewTestLogger(t))

	values, err := cache.Values(context.Background(), models.ColService)
	require.NoError(t, err)
	assert.Equal(t, []string{"Лавка"}, values)
	assert.Equal(t, int32(0), atomic.LoadInt32(&cat.calls), "storage must not be hit")

	// storage result is written back for other processes
	_, err = cache.Values(context.Background(), models.ColLocation)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:vocab:location_name"))
}

func TestCache_RedisFailureFallsBackToStorage(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("test:vocab:service").SetErr(errors.New("connection refused"))
	mock.ExpectSet("test:vocab:service", []byte(`["Маркет","Облако","Такси"]`), time.Hour).SetErr(errors.New("connection refused"))

	cat := newCatalog()
	cache := NewCache(cat, NewRedisTier(client, "test:vocab:", time.Hour), logger.NewTestLogger(t))

	values, err := cache.Values(context.Background(), models.ColService)
	require.NoError(t, err)
	assert.Equal(t, []string{"Маркет", "Облако", "Такси"}, values)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cat.calls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTier_CorruptPayload(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("p:service").SetVal("not-json")

	_, _, err := NewRedisTier(client, "p:", time.Minute).Get(context.Background(), models.ColService)
	assert.Error(t, err)
}
