package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceKnownModels(t *testing.T) {
	assert.True(t, Price("nanobanana").Equal(decimal.NewFromInt(1)))
	assert.True(t, Price("veo3").Equal(decimal.NewFromInt(20)))
	assert.True(t, Price("seedream4.5").Equal(decimal.RequireFromString("1.5")))
}

func TestPriceUnknownModelFallsBack(t *testing.T) {
	assert.True(t, Price("some-future-model").Equal(DefaultPrice))
}

func TestPriceWorkflowModels(t *testing.T) {
	assert.True(t, Price("workflow/retro-poster").Equal(workflowPrice))
	assert.True(t, Price("workflow/").Equal(workflowPrice))
}

func TestPriceTieredModelUsesCheapestTier(t *testing.T) {
	// sora2 has no flat price; the bare model id prices at its cheapest tier.
	assert.True(t, Price("sora2").Equal(decimal.NewFromInt(8)))
}

func TestVideoPrice(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		quality  string
		want     string
	}{
		{"exact standard tier", 10, "standard", "8"},
		{"exact hd tier", 15, "hd", "24"},
		{"empty quality defaults to standard", 10, "", "8"},
		{"quality is case insensitive", 10, "HD", "16"},
		{"unknown duration falls back to cheapest for quality", 30, "hd", "16"},
		{"zero duration falls back to cheapest for quality", 0, "standard", "8"},
		{"unknown quality falls back to model price", 10, "ultra", "8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VideoPrice("sora2", tt.duration, tt.quality)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestVideoPriceNonTieredModel(t *testing.T) {
	assert.True(t, VideoPrice("nanobanana", 10, "hd").Equal(decimal.NewFromInt(1)))
}

func TestMinBalance(t *testing.T) {
	// veo3 has an entry barrier above its price.
	assert.True(t, MinBalance("veo3").Equal(decimal.NewFromInt(25)))
	// everyone else: min balance == price.
	assert.True(t, MinBalance("nanobanana").Equal(decimal.NewFromInt(1)))
	assert.True(t, MinBalance("unknown").Equal(DefaultPrice))
}

func TestForGeneration(t *testing.T) {
	assert.True(t, ForGeneration("sora2", 15, "hd").Equal(decimal.NewFromInt(24)))
	assert.True(t, ForGeneration("flux2", 15, "hd").Equal(decimal.NewFromInt(2)))
}

func TestModelsListsEverythingSorted(t *testing.T) {
	models := Models()
	assert.Len(t, models, len(flatPrices)+len(videoTiers))
	for i := 1; i < len(models); i++ {
		assert.Less(t, models[i-1].Model, models[i].Model)
	}
	for _, m := range models {
		assert.True(t, m.Price.IsPositive(), "model %s has non-positive price", m.Model)
		assert.True(t, m.MinBalance.GreaterThanOrEqual(m.Price), "model %s min balance below price", m.Model)
	}
}
