package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/models"
)

func TestCacheHash_Deterministic(t *testing.T) {
	dateRange := models.DateRange{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	a := CacheHash("user-1", "quanto vendi em junho", dateRange)
	b := CacheHash("user-1", "quanto vendi em junho", dateRange)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCacheHash_NormalizesQuestion(t *testing.T) {
	dateRange := models.DateRange{}

	a := CacheHash("user-1", "  Quanto   VENDI em junho ", dateRange)
	b := CacheHash("user-1", "quanto vendi em junho", dateRange)
	assert.Equal(t, a, b)
}

func TestCacheHash_Discriminators(t *testing.T) {
	dateRange := models.DateRange{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	base := CacheHash("user-1", "quanto vendi", dateRange)

	assert.NotEqual(t, base, CacheHash("user-2", "quanto vendi", dateRange),
		"same question for another user must not share an entry")
	assert.NotEqual(t, base, CacheHash("user-1", "quanto comprei", dateRange))
	assert.NotEqual(t, base, CacheHash("user-1", "quanto vendi", models.DateRange{}))
}

func TestNewResultCache_NilClientDisablesCaching(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, zap.NewNop())

	cache.Put(context.Background(), "abc", &models.InsightsResult{RowCount: 3})
	result, ok := cache.Get(context.Background(), "abc")

	assert.False(t, ok)
	assert.Nil(t, result)
}
