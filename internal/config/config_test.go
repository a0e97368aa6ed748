package config

import (
	"testing"
	"time"

	"github.com/pesatrack/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIngestConfig_Defaults(t *testing.T) {
	cfg := LoadIngestConfig()

	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.SimilarityWindow)
	assert.Equal(t, 10*time.Minute, cfg.SimilarityProximity)
	assert.Equal(t, 100, cfg.MaxBatchSize)
	assert.Equal(t, 3*60*60, offset(cfg.Location()))
}

func TestLoadIngestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SMS_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("SMS_SIMILARITY_WINDOW", "2h")
	t.Setenv("SMS_MAX_BATCH_SIZE", "not-a-number")
	t.Setenv("SMS_TIMEZONE_OFFSET_HOURS", "0")

	cfg := LoadIngestConfig()

	assert.Equal(t, 0.9, cfg.SimilarityThreshold)
	assert.Equal(t, 2*time.Hour, cfg.SimilarityWindow)
	assert.Equal(t, 100, cfg.MaxBatchSize)
	assert.Equal(t, 0, offset(cfg.Location()))
}

func TestLoadDefaultCategories(t *testing.T) {
	cats, err := LoadDefaultCategories()
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	assert.Equal(t, "cat-food", cats[0].ID)

	last := cats[len(cats)-1]
	assert.Equal(t, models.FallbackCategoryName, last.Name)
	assert.NotNil(t, last.Keywords)
	for _, c := range cats {
		assert.True(t, c.IsDefault)
		assert.NotEmpty(t, c.ID)
	}
}

func TestParseCategories_Invalid(t *testing.T) {
	_, err := parseCategories([]byte("categories: [oops"))
	assert.Error(t, err)
}

func offset(loc *time.Location) int {
	_, off := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	return off
}
