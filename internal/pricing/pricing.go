package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit prices in tokens per generation. Unknown models fall back to
// DefaultPrice so pricing never fails on a model id we have not seen yet.
var (
	DefaultPrice = decimal.NewFromInt(2)

	flatPrices = map[string]decimal.Decimal{
		"nanobanana":     decimal.NewFromInt(1),
		"nanobanana_pro": decimal.NewFromInt(2),
		"seedream4":      decimal.NewFromInt(1),
		"seedream4.5":    decimal.RequireFromString("1.5"),
		"flux2":          decimal.NewFromInt(2),
		"flux2_flex":     decimal.RequireFromString("1.5"),
		"gpt-4o":         decimal.NewFromInt(2),
		"veo3":           decimal.NewFromInt(20),
		"veo3_fast":      decimal.NewFromInt(5),
	}

	// Models routed to automation workflows are billed by the workflow, but a
	// minimum balance is still enforced up front.
	workflowPrice = decimal.NewFromInt(3)

	// minBalance overrides: where the entry barrier is higher than the price
	// itself (long video jobs may retry and burn more than one unit).
	minBalanceOverrides = map[string]decimal.Decimal{
		"veo3": decimal.NewFromInt(25),
	}
)

// videoTiers prices duration/quality variants for models billed per tier.
// Key format is "<duration>:<quality>".
var videoTiers = map[string]map[string]decimal.Decimal{
	"sora2": {
		"10:standard": decimal.NewFromInt(8),
		"15:standard": decimal.NewFromInt(12),
		"10:hd":       decimal.NewFromInt(16),
		"15:hd":       decimal.NewFromInt(24),
	},
}

// ModelPrice is one row of the public price list.
type ModelPrice struct {
	Model      string          `json:"model"`
	Price      decimal.Decimal `json:"price"`
	MinBalance decimal.Decimal `json:"min_balance"`
}

// Models lists all directly priced models, sorted by id.
func Models() []ModelPrice {
	out := make([]ModelPrice, 0, len(flatPrices)+len(videoTiers))
	for model := range flatPrices {
		out = append(out, ModelPrice{Model: model, Price: Price(model), MinBalance: MinBalance(model)})
	}
	for model := range videoTiers {
		out = append(out, ModelPrice{Model: model, Price: Price(model), MinBalance: MinBalance(model)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Price returns the token price for a model. Total over any input.
func Price(model string) decimal.Decimal {
	if p, ok := flatPrices[model]; ok {
		return p
	}
	if strings.HasPrefix(model, "workflow/") {
		return workflowPrice
	}
	if tiers, ok := videoTiers[model]; ok {
		return cheapest(tiers)
	}
	return DefaultPrice
}

// VideoPrice prices a tiered video model by its duration/quality tuple.
// An incomplete tuple falls back to the cheapest tier for the given quality;
// an unknown tuple falls back to Price(model).
func VideoPrice(model string, duration int, quality string) decimal.Decimal {
	tiers, ok := videoTiers[model]
	if !ok {
		return Price(model)
	}
	quality = strings.ToLower(strings.TrimSpace(quality))
	if quality == "" {
		quality = "standard"
	}
	if duration > 0 {
		if p, ok := tiers[fmt.Sprintf("%d:%s", duration, quality)]; ok {
			return p
		}
	}
	if p, ok := cheapestForQuality(tiers, quality); ok {
		return p
	}
	return Price(model)
}

// MinBalance returns the balance a user must hold before a generation for the
// model is accepted. Defaults to the unit price.
func MinBalance(model string) decimal.Decimal {
	if m, ok := minBalanceOverrides[model]; ok {
		return m
	}
	return Price(model)
}

// ForGeneration resolves the actual debit amount for a request, taking the
// tier axes into account when the model has them.
func ForGeneration(model string, duration int, quality string) decimal.Decimal {
	if _, ok := videoTiers[model]; ok {
		return VideoPrice(model, duration, quality)
	}
	return Price(model)
}

func cheapest(tiers map[string]decimal.Decimal) decimal.Decimal {
	best := decimal.Decimal{}
	found := false
	for _, p := range tiers {
		if !found || p.LessThan(best) {
			best = p
			found = true
		}
	}
	if !found {
		return DefaultPrice
	}
	return best
}

func cheapestForQuality(tiers map[string]decimal.Decimal, quality string) (decimal.Decimal, bool) {
	best := decimal.Decimal{}
	found := false
	for key, p := range tiers {
		if !strings.HasSuffix(key, ":"+quality) {
			continue
		}
		if !found || p.LessThan(best) {
			best = p
			found = true
		}
	}
	return best, found
}
