package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-health/practice-platform/internal/catalog"
)

func testFixture(t *testing.T) (*catalog.MemoryStore, *catalog.ServiceDefinition, *catalog.FeeReference) {
	t.Helper()
	store := catalog.NewMemoryStore()
	tenantID := uuid.New()

	discharge := &catalog.ServiceDefinition{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Code:        "DISCHARGE_SUMMARY",
		TotalPrice:  decimal.NewFromInt(50),
		IsReport:    true,
		IsDischarge: true,
	}
	store.PutService(discharge)

	fees := &catalog.FeeReference{TenantID: tenantID, TaxPercent: 10, SystemPercent: 40, CounselorPercent: 60}
	store.PutFeeReference(fees)

	return store, discharge, fees
}

func regularSpecs(specs []SessionSpec) []SessionSpec {
	var out []SessionSpec
	for _, s := range specs {
		if !s.IsReport {
			out = append(out, s)
		}
	}
	return out
}

func TestGenerateStandardWeekly(t *testing.T) {
	store, discharge, fees := testFixture(t)
	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "CBT_STD",
		TotalPrice:   decimal.NewFromInt(100),
		SessionCount: 4,
		FormulaType:  catalog.FormulaStandard,
		Gaps:         []int{7},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	// Saturday start corrects to Monday 2025-03-10, then weekly.
	specs, err := g.Generate(context.Background(), date(2025, time.March, 8), svc, discharge, fees)
	require.NoError(t, err)

	regular := regularSpecs(specs)
	require.Len(t, regular, 4)
	require.Equal(t, date(2025, time.March, 10), regular[0].Date)
	require.Equal(t, date(2025, time.March, 17), regular[1].Date)
	require.Equal(t, date(2025, time.March, 24), regular[2].Date)
	require.Equal(t, date(2025, time.March, 31), regular[3].Date)

	last := specs[len(specs)-1]
	require.True(t, last.IsDischarge)
	require.Equal(t, date(2025, time.April, 7), last.Date)
	require.Equal(t, discharge.ID, last.ServiceID)
	require.Equal(t, 5, last.Position)
}

func TestGenerateDynamicWithZeroGap(t *testing.T) {
	store, discharge, fees := testFixture(t)
	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "INTAKE_PLUS",
		TotalPrice:   decimal.NewFromInt(100),
		SessionCount: 4,
		FormulaType:  catalog.FormulaDynamic,
		Gaps:         []int{3, 0, 5},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	specs, err := g.Generate(context.Background(), date(2025, time.March, 10), svc, discharge, fees)
	require.NoError(t, err)

	regular := regularSpecs(specs)
	require.Len(t, regular, 4)
	require.Equal(t, date(2025, time.March, 10), regular[0].Date)
	require.Equal(t, date(2025, time.March, 13), regular[1].Date)
	// Zero gap keeps the same day, even with no weekend correction step.
	require.Equal(t, date(2025, time.March, 13), regular[2].Date)
	require.Equal(t, date(2025, time.March, 18), regular[3].Date)

	// Dynamic formulas use the 7-day fallback before the discharge slot.
	last := specs[len(specs)-1]
	require.True(t, last.IsDischarge)
	require.Equal(t, date(2025, time.March, 25), last.Date)
}

func TestGenerateNoWeekendInvariant(t *testing.T) {
	store, discharge, fees := testFixture(t)
	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "DAILY",
		TotalPrice:   decimal.NewFromInt(60),
		SessionCount: 10,
		FormulaType:  catalog.FormulaStandard,
		Gaps:         []int{1},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	for day := 1; day <= 14; day++ {
		specs, err := g.Generate(context.Background(), date(2025, time.June, day), svc, discharge, fees)
		require.NoError(t, err)
		for _, s := range specs {
			require.False(t, IsWeekend(s.Date), "start %d produced weekend session on %s", day, s.Date)
		}
	}
}

func TestGenerateDischargeAfterLastRegular(t *testing.T) {
	store, discharge, fees := testFixture(t)
	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "SHORT",
		TotalPrice:   decimal.NewFromInt(90),
		SessionCount: 3,
		FormulaType:  catalog.FormulaDynamic,
		Gaps:         []int{2, 4},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	specs, err := g.Generate(context.Background(), date(2025, time.May, 5), svc, discharge, fees)
	require.NoError(t, err)

	last := specs[len(specs)-1]
	require.True(t, last.IsDischarge)
	for _, s := range specs[:len(specs)-1] {
		require.True(t, last.Date.After(s.Date), "discharge %s not after %s", last.Date, s.Date)
	}
}

func TestGenerateInterleavesReports(t *testing.T) {
	store, discharge, fees := testFixture(t)

	report := &catalog.ServiceDefinition{
		ID:         uuid.New(),
		TenantID:   discharge.TenantID,
		Code:       "PROGRESS_REP",
		TotalPrice: decimal.NewFromInt(30),
		IsReport:   true,
	}
	store.PutService(report)

	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "CBT_REP",
		TotalPrice:   decimal.NewFromInt(100),
		SessionCount: 4,
		FormulaType:  catalog.FormulaStandard,
		Gaps:         []int{7},
		Reports: []catalog.ReportPlacement{
			{Position: 2, ServiceID: report.ID},
			{Position: 4, ServiceID: report.ID},
		},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	specs, err := g.Generate(context.Background(), date(2025, time.March, 10), svc, discharge, fees)
	require.NoError(t, err)
	require.Len(t, specs, 7) // 4 regular + 2 reports + discharge

	byPosition := map[int][]SessionSpec{}
	for _, s := range specs {
		byPosition[s.Position] = append(byPosition[s.Position], s)
	}

	for _, pos := range []int{2, 4} {
		require.Len(t, byPosition[pos], 2, "position %d should carry a report", pos)
		require.Equal(t, byPosition[pos][0].Date, byPosition[pos][1].Date,
			"report at position %d must share its session's date", pos)
	}

	// Report pricing comes from the report's own service.
	var reportSpec SessionSpec
	for _, s := range specs {
		if s.IsReport && !s.IsDischarge {
			reportSpec = s
			break
		}
	}
	require.True(t, reportSpec.Amounts.Tax.Equal(decimal.NewFromInt(3)),
		"report tax computed from report price, got %s", reportSpec.Amounts.Tax)
}

func TestGenerateReportFallbackByCode(t *testing.T) {
	store, discharge, fees := testFixture(t)

	otherTenant := uuid.New()
	foreignReport := &catalog.ServiceDefinition{
		ID:         uuid.New(),
		TenantID:   otherTenant,
		Code:       "PROGRESS_REP",
		TotalPrice: decimal.NewFromInt(25),
		IsReport:   true,
	}
	store.PutService(foreignReport)

	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "CBT_X",
		TotalPrice:   decimal.NewFromInt(100),
		SessionCount: 2,
		FormulaType:  catalog.FormulaStandard,
		Gaps:         []int{7},
		Reports:      []catalog.ReportPlacement{{Position: 1, ServiceID: foreignReport.ID}},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	specs, err := g.Generate(context.Background(), date(2025, time.March, 10), svc, discharge, fees)
	require.NoError(t, err)

	var found bool
	for _, s := range specs {
		if s.IsReport && !s.IsDischarge {
			found = true
			require.Equal(t, foreignReport.ID, s.ServiceID)
		}
	}
	require.True(t, found, "cross-tenant report should resolve by code")
}

func TestGenerateSkipsUnresolvableReport(t *testing.T) {
	store, discharge, fees := testFixture(t)

	svc := &catalog.ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     discharge.TenantID,
		Code:         "CBT_GHOST",
		TotalPrice:   decimal.NewFromInt(100),
		SessionCount: 2,
		FormulaType:  catalog.FormulaStandard,
		Gaps:         []int{7},
		Reports:      []catalog.ReportPlacement{{Position: 1, ServiceID: uuid.New()}},
	}
	store.PutService(svc)

	g := NewGenerator(store, nil)
	specs, err := g.Generate(context.Background(), date(2025, time.March, 10), svc, discharge, fees)
	require.NoError(t, err, "missing report must not abort generation")
	require.Len(t, specs, 3) // 2 regular + discharge, report skipped
}

func TestGenerateFormulaMismatch(t *testing.T) {
	store, discharge, fees := testFixture(t)
	g := NewGenerator(store, nil)

	tests := []struct {
		name string
		svc  *catalog.ServiceDefinition
	}{
		{"dynamic wrong gap count", &catalog.ServiceDefinition{
			ID: uuid.New(), TenantID: discharge.TenantID, TotalPrice: decimal.NewFromInt(10),
			SessionCount: 4, FormulaType: catalog.FormulaDynamic, Gaps: []int{3, 5},
		}},
		{"standard multiple gaps", &catalog.ServiceDefinition{
			ID: uuid.New(), TenantID: discharge.TenantID, TotalPrice: decimal.NewFromInt(10),
			SessionCount: 4, FormulaType: catalog.FormulaStandard, Gaps: []int{7, 7},
		}},
		{"standard empty gaps", &catalog.ServiceDefinition{
			ID: uuid.New(), TenantID: discharge.TenantID, TotalPrice: decimal.NewFromInt(10),
			SessionCount: 4, FormulaType: catalog.FormulaStandard,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), date(2025, time.March, 10), tt.svc, discharge, fees)
			require.True(t, errors.Is(err, ErrFormulaMismatch), "got %v", err)
		})
	}
}
