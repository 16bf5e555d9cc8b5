// Package stats computes derived portfolio statistics from a priced
// snapshot. Pure and deterministic: no I/O, no clock, no randomness.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Compute aggregates a snapshot into portfolio statistics.
//
// Per position: cost = quantity * averageCost, marketValue = quantity *
// resolvedPrice, gainLoss = marketValue - cost. Totals are plain sums.
// Return rates guard the zero-cost case; allocation percentages guard the
// zero-market-value case. Asset rows keep position insertion order;
// allocation rows keep first-seen order of asset kinds.
func Compute(snapshot model.Snapshot) model.PortfolioStats {
	out := model.PortfolioStats{
		TotalMarketValue: decimal.Zero,
		TotalCost:        decimal.Zero,
		TotalGainLoss:    decimal.Zero,
		TotalReturnRate:  decimal.Zero,
	}

	valueByKind := make(map[model.AssetKind]decimal.Decimal)
	var kindOrder []model.AssetKind

	for _, p := range snapshot.Positions {
		cost := p.Quantity.Mul(p.AverageCost)
		marketValue := p.Quantity.Mul(snapshot.PriceFor(p))
		gainLoss := marketValue.Sub(cost)

		returnRate := decimal.Zero
		if cost.IsPositive() {
			returnRate = gainLoss.Div(cost).Mul(hundred)
		}

		out.TotalCost = out.TotalCost.Add(cost)
		out.TotalMarketValue = out.TotalMarketValue.Add(marketValue)

		if _, ok := valueByKind[p.AssetKind]; !ok {
			kindOrder = append(kindOrder, p.AssetKind)
		}
		valueByKind[p.AssetKind] = valueByKind[p.AssetKind].Add(marketValue)

		out.AssetReturns = append(out.AssetReturns, model.AssetReturn{
			PositionID:  p.ID,
			Ticker:      p.Ticker,
			Name:        p.Name,
			AssetKind:   p.AssetKind,
			Cost:        cost,
			MarketValue: marketValue,
			GainLoss:    gainLoss,
			ReturnRate:  returnRate,
		})
	}

	out.TotalGainLoss = out.TotalMarketValue.Sub(out.TotalCost)
	if out.TotalCost.IsPositive() {
		out.TotalReturnRate = out.TotalGainLoss.Div(out.TotalCost).Mul(hundred)
	}

	for _, kind := range kindOrder {
		value := valueByKind[kind]
		percentage := decimal.Zero
		if out.TotalMarketValue.IsPositive() {
			percentage = value.Div(out.TotalMarketValue).Mul(hundred)
		}
		out.Allocations = append(out.Allocations, model.Allocation{
			AssetKind:  kind,
			Value:      value,
			Percentage: percentage,
		})
	}

	return out
}
