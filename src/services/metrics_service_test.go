package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
	"github.com/username/advisorcrm/backend/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type fakeProductStore struct {
	products map[int64]models.ProductRecord
	err      error
}

func (f *fakeProductStore) GetProductsByIDs(ids []int64) (map[int64]models.ProductRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	found := make(map[int64]models.ProductRecord)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (f *fakeProductStore) ListProducts() ([]models.ProductRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	list := []models.ProductRecord{}
	for _, p := range f.products {
		list = append(list, p)
	}
	return list, nil
}

func (f *fakeProductStore) GetProductByID(id int64) (*models.ProductRecord, error) {
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, errors.New("not found")
}

type fakePortfolioStore struct {
	insertedPortfolio *models.ModelPortfolio
	insertedLines     []models.AllocationLine
	insertErr         error
}

func (f *fakePortfolioStore) InsertModelPortfolio(p *models.ModelPortfolio, lines []models.AllocationLine) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.insertedPortfolio = p
	f.insertedLines = lines
	return 42, nil
}

func (f *fakePortfolioStore) ListModelPortfolios() ([]models.ModelPortfolio, error) {
	return nil, nil
}

func (f *fakePortfolioStore) GetModelPortfolio(id int64) (*models.ModelPortfolio, error) {
	return nil, errors.New("not found")
}

func (f *fakePortfolioStore) DeleteModelPortfolio(id int64) error { return nil }

func intPtr(v int) *int { return &v }

func catalogWithCosts() *fakeProductStore {
	return &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {
			ID: 1, Name: "Global Equity Fund", AssetCategory: models.CategoryEquity,
			RiskIndicator: intPtr(3), OngoingCostRaw: "0.50%", HoldingPeriodRaw: "5",
		},
		2: {
			ID: 2, Name: "Corporate Bond Fund", AssetCategory: models.CategoryBonds,
			RiskIndicator: intPtr(5), OngoingCostRaw: "1.00%",
		},
	}}
}

func newTestService(products ProductStore, portfolios PortfolioStore) MetricsService {
	return NewMetricsService(products, portfolios, nil)
}

func TestCalculateMetricsScenario(t *testing.T) {
	// Allocation sums to 105 and must be rescaled; product 2 carries no
	// holding period, so product 1 alone determines the horizon.
	svc := newTestService(catalogWithCosts(), &fakePortfolioStore{})

	report, normalized, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 60},
		{ProductID: 2, Percentage: 45},
	})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.InDelta(t, 57.14, normalized[0].Percentage, 0.01)
	assert.InDelta(t, 42.86, normalized[1].Percentage, 0.01)

	assert.InDelta(t, 3.857, report.AverageRisk, 0.001)

	require.NotNil(t, report.AverageInvestmentHorizon)
	assert.InDelta(t, 5.0, *report.AverageInvestmentHorizon, 1e-9)

	assert.InDelta(t, 0.00714, report.OngoingCost, 0.0001)
	assert.InDelta(t, 0.00714, report.TotalExpenseRatio, 0.0001)
	assert.Equal(t, 0.0, report.EntryCost)
	assert.Equal(t, 0.0, report.ExitCost)
	assert.Equal(t, 0.0, report.TransactionCost)

	assert.InDelta(t, 57.14, report.AssetClassDistribution[models.CategoryEquity], 0.01)
	assert.InDelta(t, 42.86, report.AssetClassDistribution[models.CategoryBonds], 0.01)

	// Audit traces cover every resolved line
	require.Len(t, report.ProductDetails, 2)
	require.Len(t, report.RiskCalculation, 2)
	require.Len(t, report.HorizonCalculation, 1) // only product 1 has a horizon
	require.Len(t, report.CostCalculation, 2)
	assert.InDelta(t, report.RiskCalculation[0].Weight*report.RiskCalculation[0].Risk,
		report.RiskCalculation[0].Contribution, 1e-12)
}

func TestCalculateMetricsIdempotent(t *testing.T) {
	svc := newTestService(catalogWithCosts(), &fakePortfolioStore{})
	allocation := []models.AllocationLine{
		{ProductID: 1, Percentage: 60},
		{ProductID: 2, Percentage: 40},
	}

	first, _, err := svc.CalculateMetrics(context.Background(), allocation)
	require.NoError(t, err)
	second, _, err := svc.CalculateMetrics(context.Background(), allocation)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestCalculateMetricsCategoryAggregation(t *testing.T) {
	store := &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {ID: 1, Name: "Bond Fund A", AssetCategory: models.CategoryBonds},
		2: {ID: 2, Name: "Bond Fund B", AssetCategory: models.CategoryBonds},
		3: {ID: 3, Name: "Equity Fund", AssetCategory: models.CategoryEquity},
	}}
	svc := newTestService(store, &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 30},
		{ProductID: 2, Percentage: 20},
		{ProductID: 3, Percentage: 50},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, report.AssetClassDistribution[models.CategoryBonds], 1e-9)
	assert.InDelta(t, 50.0, report.AssetClassDistribution[models.CategoryEquity], 1e-9)
}

func TestCalculateMetricsCategoryOverride(t *testing.T) {
	store := &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {ID: 1, Name: "Mixed Fund", AssetCategory: models.CategoryEquity},
		2: {ID: 2, Name: "Uncategorized Note"},
	}}
	svc := newTestService(store, &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 50, Category: models.CategoryBonds},
		{ProductID: 2, Percentage: 50},
	})
	require.NoError(t, err)

	// Line override wins; a product without category falls back to "other".
	assert.InDelta(t, 50.0, report.AssetClassDistribution[models.CategoryBonds], 1e-9)
	assert.InDelta(t, 50.0, report.AssetClassDistribution[models.CategoryOther], 1e-9)
	assert.NotContains(t, report.AssetClassDistribution, models.CategoryEquity)
}

func TestCalculateMetricsAllCostsAbsent(t *testing.T) {
	store := &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {ID: 1, Name: "Opaque Fund", AssetCategory: models.CategoryOther, RiskIndicator: intPtr(4)},
	}}
	svc := newTestService(store, &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.EntryCost)
	assert.Equal(t, 0.0, report.ExitCost)
	assert.Equal(t, 0.0, report.OngoingCost)
	assert.Equal(t, 0.0, report.TransactionCost)
	assert.Equal(t, 0.0, report.TotalExpenseRatio)
	assert.Nil(t, report.AverageInvestmentHorizon)
}

func TestCalculateMetricsTERHorizonSensitivity(t *testing.T) {
	// Fixed entry/exit costs amortized over a longer horizon must yield a
	// strictly lower TER.
	terForHorizon := func(t *testing.T, horizonRaw string) float64 {
		t.Helper()
		store := &fakeProductStore{products: map[int64]models.ProductRecord{
			1: {
				ID: 1, Name: "Front-Loaded Fund", AssetCategory: models.CategoryEquity,
				EntryCostRaw: "3.00%", ExitCostRaw: "1.00%", OngoingCostRaw: "0.80%",
				HoldingPeriodRaw: horizonRaw,
			},
		}}
		svc := newTestService(store, &fakePortfolioStore{})
		report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
			{ProductID: 1, Percentage: 100},
		})
		require.NoError(t, err)
		return report.TotalExpenseRatio
	}

	short := terForHorizon(t, "2")
	medium := terForHorizon(t, "5")
	long := terForHorizon(t, "10")
	assert.Greater(t, short, medium)
	assert.Greater(t, medium, long)

	// (0.03+0.01)/2 + 0.008
	assert.InDelta(t, 0.028, short, 1e-9)
}

func TestCalculateMetricsSingleInformativeRisk(t *testing.T) {
	// One product carries risk r with a small weight: the aggregate must be
	// exactly r, not r*w.
	store := &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {ID: 1, Name: "Rated Fund", AssetCategory: models.CategoryEquity, RiskIndicator: intPtr(3)},
		2: {ID: 2, Name: "Unrated Fund", AssetCategory: models.CategoryBonds},
	}}
	svc := newTestService(store, &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 5},
		{ProductID: 2, Percentage: 95},
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, report.AverageRisk, 1e-9)
}

func TestCalculateMetricsDefaults(t *testing.T) {
	t.Run("empty allocation returns all-defaults report", func(t *testing.T) {
		svc := newTestService(catalogWithCosts(), &fakePortfolioStore{})
		report, normalized, err := svc.CalculateMetrics(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, normalized)
		assert.Equal(t, processors.DefaultRiskScore, report.AverageRisk)
		assert.Nil(t, report.AverageInvestmentHorizon)
		assert.Equal(t, 0.0, report.TotalExpenseRatio)
		assert.Empty(t, report.ProductDetails)
	})

	t.Run("nothing resolvable returns all-defaults report", func(t *testing.T) {
		svc := newTestService(&fakeProductStore{products: map[int64]models.ProductRecord{}}, &fakePortfolioStore{})
		report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
			{ProductID: 99, Percentage: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, processors.DefaultRiskScore, report.AverageRisk)
		assert.Nil(t, report.AverageInvestmentHorizon)
		assert.Empty(t, report.ProductDetails)
	})

	t.Run("risk defaults to 7 when no product is rated", func(t *testing.T) {
		store := &fakeProductStore{products: map[int64]models.ProductRecord{
			1: {ID: 1, Name: "Unrated Fund", AssetCategory: models.CategoryCash},
		}}
		svc := newTestService(store, &fakePortfolioStore{})
		report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
			{ProductID: 1, Percentage: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, processors.DefaultRiskScore, report.AverageRisk)
		assert.Empty(t, report.RiskCalculation)
	})
}

func TestCalculateMetricsSkipsUnknownProducts(t *testing.T) {
	svc := newTestService(catalogWithCosts(), &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 50},
		{ProductID: 999, Percentage: 50},
	})
	require.NoError(t, err)
	require.Len(t, report.ProductDetails, 1)
	assert.Equal(t, int64(1), report.ProductDetails[0].ProductID)

	// The unresolved half of the weight mass does not dilute the average.
	assert.InDelta(t, 3.0, report.AverageRisk, 1e-9)
}

func TestCalculateMetricsMalformedFieldsDegrade(t *testing.T) {
	store := &fakeProductStore{products: map[int64]models.ProductRecord{
		1: {
			ID: 1, Name: "Messy Fund", AssetCategory: models.CategoryEquity,
			RiskIndicator:    intPtr(2),
			OngoingCostRaw:   "n/a",
			EntryCostRaw:     "??",
			HoldingPeriodRaw: "ask your advisor",
		},
		2: {
			ID: 2, Name: "Clean Fund", AssetCategory: models.CategoryEquity,
			RiskIndicator:  intPtr(4),
			OngoingCostRaw: "1.00%",
		},
	}}
	svc := newTestService(store, &fakePortfolioStore{})

	report, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 50},
		{ProductID: 2, Percentage: 50},
	})
	require.NoError(t, err)

	// Malformed cost fields are excluded, not counted as zero: product 2's
	// ongoing cost alone determines the average.
	assert.InDelta(t, 0.01, report.OngoingCost, 1e-9)
	assert.InDelta(t, 3.0, report.AverageRisk, 1e-9)
	assert.Nil(t, report.AverageInvestmentHorizon)
}

func TestCalculateMetricsProductLookupFailure(t *testing.T) {
	svc := newTestService(&fakeProductStore{err: errors.New("db down")}, &fakePortfolioStore{})
	_, _, err := svc.CalculateMetrics(context.Background(), []models.AllocationLine{
		{ProductID: 1, Percentage: 100},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestSavePortfolio(t *testing.T) {
	t.Run("persists report scalars with normalized lines", func(t *testing.T) {
		portfolios := &fakePortfolioStore{}
		svc := newTestService(catalogWithCosts(), portfolios)

		id, report, err := svc.SavePortfolio(context.Background(), "Balanced 60/40", "Demo", []models.AllocationLine{
			{ProductID: 1, Percentage: 60},
			{ProductID: 2, Percentage: 45},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		require.NotNil(t, portfolios.insertedPortfolio)
		assert.Equal(t, "Balanced 60/40", portfolios.insertedPortfolio.Name)
		assert.Equal(t, report.AverageRisk, portfolios.insertedPortfolio.AverageRisk)
		assert.Equal(t, report.TotalExpenseRatio, portfolios.insertedPortfolio.TotalExpenseRatio)

		// Rescaled, not raw, percentages reach the store
		require.Len(t, portfolios.insertedLines, 2)
		assert.InDelta(t, 57.14, portfolios.insertedLines[0].Percentage, 0.01)
	})

	t.Run("empty allocation is a contract failure", func(t *testing.T) {
		svc := newTestService(catalogWithCosts(), &fakePortfolioStore{})
		_, _, err := svc.SavePortfolio(context.Background(), "Empty", "", nil)
		assert.ErrorIs(t, err, ErrEmptyAllocation)
	})

	t.Run("persistence failure propagates", func(t *testing.T) {
		portfolios := &fakePortfolioStore{insertErr: errors.New("disk full")}
		svc := newTestService(catalogWithCosts(), portfolios)
		_, _, err := svc.SavePortfolio(context.Background(), "Doomed", "", []models.AllocationLine{
			{ProductID: 1, Percentage: 100},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestAllocationDigestOrderIndependent(t *testing.T) {
	a := allocationDigest([]models.AllocationLine{
		{ProductID: 1, Percentage: 60},
		{ProductID: 2, Percentage: 40},
	})
	b := allocationDigest([]models.AllocationLine{
		{ProductID: 2, Percentage: 40},
		{ProductID: 1, Percentage: 60},
	})
	assert.Equal(t, a, b)

	c := allocationDigest([]models.AllocationLine{
		{ProductID: 2, Percentage: 41},
		{ProductID: 1, Percentage: 59},
	})
	assert.NotEqual(t, a, c)
}
