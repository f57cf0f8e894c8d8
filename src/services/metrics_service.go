package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
	"github.com/username/advisorcrm/backend/src/processors"
)

// Cache settings for computed reports. The computation is deterministic over
// its inputs, so a digest of the normalized allocation is a safe cache key.
const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

type metricsServiceImpl struct {
	products    ProductStore
	portfolios  PortfolioStore
	reportCache *cache.Cache
}

// NewMetricsService builds the portfolio metrics calculator over its two
// collaborator boundaries. reportCache may be nil to disable caching.
func NewMetricsService(products ProductStore, portfolios PortfolioStore, reportCache *cache.Cache) MetricsService {
	return &metricsServiceImpl{
		products:    products,
		portfolios:  portfolios,
		reportCache: reportCache,
	}
}

// optional carries a normalized value together with its presence flag, so
// absent fields can be excluded from aggregation instead of counting as zero.
type optional struct {
	value float64
	ok    bool
}

// lineMetrics is the per-line working set: the allocation fraction plus every
// normalized field of the matched product.
type lineMetrics struct {
	weight      float64 // allocation percentage / 100
	risk        optional
	horizon     optional
	entry       optional
	exit        optional
	ongoing     optional
	transaction optional
}

func (s *metricsServiceImpl) CalculateMetrics(ctx context.Context, lines []models.AllocationLine) (*models.MetricsReport, []models.AllocationLine, error) {
	log := logger.FromContext(ctx)

	if len(lines) == 0 {
		log.Warn("CalculateMetrics called with an empty allocation, returning policy defaults")
		return defaultReport(), []models.AllocationLine{}, nil
	}

	normalized := processors.NormalizeAllocation(lines)

	digest := allocationDigest(normalized)
	if s.reportCache != nil {
		if cached, found := s.reportCache.Get(digest); found {
			if report, ok := cached.(*models.MetricsReport); ok {
				return report, normalized, nil
			}
		}
	}

	ids := make([]int64, 0, len(normalized))
	seen := make(map[int64]bool, len(normalized))
	for _, line := range normalized {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}

	products, err := s.products.GetProductsByIDs(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving allocation products: %w", err)
	}

	report := &models.MetricsReport{
		AssetClassDistribution: map[string]float64{},
		ProductDetails:         []models.ProductDetail{},
		RiskCalculation:        []models.RiskTrace{},
		HorizonCalculation:     []models.HorizonTrace{},
		CostCalculation:        []models.CostTrace{},
	}

	computed := make([]lineMetrics, 0, len(normalized))
	for _, line := range normalized {
		product, found := products[line.ProductID]
		if !found {
			// Resolution failure is not fatal: skip the line and keep going.
			log.Warn("Allocation references unknown product, skipping line",
				"productID", line.ProductID, "percentage", line.Percentage)
			continue
		}

		lm := normalizeLine(line, product)
		computed = append(computed, lm)

		category := resolveCategory(line, product)
		// Summing, not overwriting: several lines may share a category.
		report.AssetClassDistribution[category] += line.Percentage

		report.ProductDetails = append(report.ProductDetails, models.ProductDetail{
			ProductID:       product.ID,
			Name:            product.Name,
			Category:        category,
			Percentage:      line.Percentage,
			Risk:            lm.risk.ptr(),
			Horizon:         lm.horizon.ptr(),
			EntryCost:       lm.entry.value,
			ExitCost:        lm.exit.value,
			OngoingCost:     lm.ongoing.value,
			TransactionCost: lm.transaction.value,
		})
		if lm.risk.ok {
			report.RiskCalculation = append(report.RiskCalculation, models.RiskTrace{
				Weight:       lm.weight,
				Risk:         lm.risk.value,
				Contribution: lm.weight * lm.risk.value,
			})
		}
		if lm.horizon.ok {
			report.HorizonCalculation = append(report.HorizonCalculation, models.HorizonTrace{
				Weight:       lm.weight,
				Horizon:      lm.horizon.value,
				Contribution: lm.weight * lm.horizon.value,
			})
		}
		report.CostCalculation = append(report.CostCalculation, models.CostTrace{
			Weight:      lm.weight,
			Entry:       lm.entry.value,
			Exit:        lm.exit.value,
			Ongoing:     lm.ongoing.value,
			Transaction: lm.transaction.value,
		})
	}

	if len(computed) == 0 {
		// Caller-level contract violation (nothing resolvable): a
		// well-formed all-defaults report instead of an error.
		log.Warn("No allocation line could be resolved to a product, returning policy defaults")
		return defaultReport(), normalized, nil
	}

	weightOf := func(lm lineMetrics) float64 { return lm.weight }

	report.AverageRisk, _ = processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.risk.value, lm.risk.ok },
		processors.DefaultRiskScore)

	avgHorizon, horizonKnown := processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.horizon.value, lm.horizon.ok },
		processors.DefaultHorizonYears)
	if horizonKnown {
		report.AverageInvestmentHorizon = &avgHorizon
	}

	report.EntryCost, _ = processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.entry.value, lm.entry.ok }, 0)
	report.ExitCost, _ = processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.exit.value, lm.exit.ok }, 0)
	report.OngoingCost, _ = processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.ongoing.value, lm.ongoing.ok }, 0)
	report.TransactionCost, _ = processors.WeightedAverageBy(computed, weightOf,
		func(lm lineMetrics) (float64, bool) { return lm.transaction.value, lm.transaction.ok }, 0)

	// One-off entry/exit costs are amortized over the effective holding
	// period, so shorter horizons produce a higher annualized cost.
	// avgHorizon already holds the 10-year policy default when no line
	// carried a usable holding period. A non-positive horizon cannot
	// amortize anything and would put Inf into the report, so it falls
	// back to the same policy default.
	effectiveHorizon := avgHorizon
	if effectiveHorizon <= 0 {
		effectiveHorizon = processors.DefaultHorizonYears
	}
	report.TotalExpenseRatio = (report.EntryCost+report.ExitCost)/effectiveHorizon +
		report.OngoingCost + report.TransactionCost

	if s.reportCache != nil {
		s.reportCache.Set(digest, report, cache.DefaultExpiration)
	}
	return report, normalized, nil
}

func (s *metricsServiceImpl) SavePortfolio(ctx context.Context, name, description string, lines []models.AllocationLine) (int64, *models.MetricsReport, error) {
	log := logger.FromContext(ctx)

	if len(lines) == 0 {
		return 0, nil, ErrEmptyAllocation
	}

	report, normalized, err := s.CalculateMetrics(ctx, lines)
	if err != nil {
		return 0, nil, err
	}

	portfolio := &models.ModelPortfolio{
		Name:              name,
		Description:       description,
		AverageRisk:       report.AverageRisk,
		AverageHorizon:    report.AverageInvestmentHorizon,
		TotalExpenseRatio: report.TotalExpenseRatio,
		EntryCost:         report.EntryCost,
		ExitCost:          report.ExitCost,
		OngoingCost:       report.OngoingCost,
		TransactionCost:   report.TransactionCost,
		AssetDistribution: report.AssetClassDistribution,
	}

	portfolioID, err := s.portfolios.InsertModelPortfolio(portfolio, normalized)
	if err != nil {
		return 0, nil, fmt.Errorf("persisting model portfolio: %w", err)
	}

	log.Info("Model portfolio saved", "portfolioID", portfolioID, "lines", len(normalized))
	return portfolioID, report, nil
}

// normalizeLine converts one allocation line plus its product record into the
// normalized per-line working set.
func normalizeLine(line models.AllocationLine, product models.ProductRecord) lineMetrics {
	lm := lineMetrics{weight: line.Percentage / 100.0}

	if product.RiskIndicator != nil {
		lm.risk = optional{value: float64(*product.RiskIndicator), ok: true}
	}

	if years, ok := processors.ParseHorizon(product.HoldingPeriodRaw); ok {
		lm.horizon = optional{value: years, ok: true}
	}

	lm.entry = parseCostField(product.EntryCostRaw)
	lm.exit = parseCostField(product.ExitCostRaw)
	lm.ongoing = parseCostField(product.OngoingCostRaw)
	lm.transaction = parseCostField(product.TransactionCostRaw)
	return lm
}

func parseCostField(raw string) optional {
	v, ok := processors.ParseCost(raw)
	return optional{value: v, ok: ok}
}

// resolveCategory picks the explicit override on the line, else the product's
// own category, else "other".
func resolveCategory(line models.AllocationLine, product models.ProductRecord) string {
	if line.Category != "" {
		return line.Category
	}
	return product.Category()
}

// defaultReport is the all-defaults report handed back when nothing in the
// allocation is computable. Downstream consumers assume a report always
// carries usable scalars.
func defaultReport() *models.MetricsReport {
	return &models.MetricsReport{
		AverageRisk:            processors.DefaultRiskScore,
		AssetClassDistribution: map[string]float64{},
		ProductDetails:         []models.ProductDetail{},
		RiskCalculation:        []models.RiskTrace{},
		HorizonCalculation:     []models.HorizonTrace{},
		CostCalculation:        []models.CostTrace{},
	}
}

// allocationDigest builds a deterministic cache key from the normalized
// allocation, independent of line order.
func allocationDigest(lines []models.AllocationLine) string {
	keys := make([]string, 0, len(lines))
	for _, line := range lines {
		keys = append(keys, strconv.FormatInt(line.ProductID, 10)+":"+
			strconv.FormatFloat(line.Percentage, 'g', -1, 64)+":"+line.Category)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (o optional) ptr() *float64 {
	if !o.ok {
		return nil
	}
	v := o.value
	return &v
}
