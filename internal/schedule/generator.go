package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/pricing"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// SessionSpec is one planned calendar slot produced by the generator. Specs
// are persisted as sessions by the orchestrator after collision checks pass.
type SessionSpec struct {
	Position    int
	Date        time.Time
	ServiceID   uuid.UUID
	IsReport    bool
	IsDischarge bool
	Amounts     pricing.Amounts
}

// Generator produces the full session calendar for a therapy request:
// regular sessions per the service formula, accompanying progress reports,
// and one terminal discharge report.
type Generator struct {
	store  catalog.Store
	logger *logging.Logger
}

// NewGenerator creates a schedule generator.
func NewGenerator(store catalog.Store, logger *logging.Logger) *Generator {
	if store == nil {
		panic("schedule: catalog store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{store: store, logger: logger}
}

// Generate builds the ordered session calendar starting at startDate.
//
// The first session lands on startDate, corrected to the next weekday.
// Standard formulas advance every gap by the single fixed interval; dynamic
// formulas advance gap i by gaps[i]. A zero gap means same-day and skips
// weekend correction. Each position listed in the service's report placements
// emits an additional report spec on the same date. The discharge report
// follows the last regular session by one interval (7 days for dynamic
// formulas) and is always weekend-corrected.
func (g *Generator) Generate(ctx context.Context, startDate time.Time, svc, discharge *catalog.ServiceDefinition, fees *catalog.FeeReference) ([]SessionSpec, error) {
	if err := validateFormula(svc); err != nil {
		return nil, err
	}

	specs := make([]SessionSpec, 0, svc.SessionCount+len(svc.Reports)+1)
	current := NextWeekday(DateOnly(startDate))
	svcAmounts := pricing.ComputeAmounts(svc.TotalPrice, fees.TaxPercent, fees.SystemPercent)

	for i := 1; i <= svc.SessionCount; i++ {
		if i > 1 {
			gap := svc.Gaps[0]
			if svc.FormulaType == catalog.FormulaDynamic {
				gap = svc.Gaps[i-2]
			}
			if gap > 0 {
				current = AddDays(current, gap)
			}
		}

		specs = append(specs, SessionSpec{
			Position:  i,
			Date:      current,
			ServiceID: svc.ID,
			Amounts:   svcAmounts,
		})

		if report := g.resolveReport(ctx, svc, i); report != nil {
			specs = append(specs, SessionSpec{
				Position:  i,
				Date:      current,
				ServiceID: report.ID,
				IsReport:  true,
				Amounts:   pricing.ComputeAmounts(report.TotalPrice, fees.TaxPercent, fees.SystemPercent),
			})
		}
	}

	dischargeDate := AddDays(current, svc.Interval())
	specs = append(specs, SessionSpec{
		Position:    svc.SessionCount + 1,
		Date:        dischargeDate,
		ServiceID:   discharge.ID,
		IsReport:    true,
		IsDischarge: true,
		Amounts:     pricing.ComputeAmounts(discharge.TotalPrice, fees.TaxPercent, fees.SystemPercent),
	})

	return specs, nil
}

// resolveReport looks up the report service attached to position i, if any.
// An unresolvable report is skipped rather than failing the whole calendar.
func (g *Generator) resolveReport(ctx context.Context, svc *catalog.ServiceDefinition, position int) *catalog.ServiceDefinition {
	var placement *catalog.ReportPlacement
	for idx := range svc.Reports {
		if svc.Reports[idx].Position == position {
			placement = &svc.Reports[idx]
			break
		}
	}
	if placement == nil {
		return nil
	}

	report, err := g.store.GetServiceForTenant(ctx, svc.TenantID, placement.ServiceID)
	if err == nil {
		return report
	}

	// The placement may reference another tenant's copy of the report
	// service; retry by code within this tenant, then anywhere.
	base, baseErr := g.store.GetService(ctx, placement.ServiceID)
	if baseErr == nil {
		if report, err = g.store.GetServiceByCode(ctx, svc.TenantID, base.Code); err == nil {
			return report
		}
		if report, err = g.store.FindServiceByCodeAnyTenant(ctx, base.Code); err == nil {
			return report
		}
	}

	g.logger.Warn("schedule: report service unresolved, skipping placement",
		"service_id", svc.ID,
		"report_service_id", placement.ServiceID,
		"position", position,
	)
	return nil
}

func validateFormula(svc *catalog.ServiceDefinition) error {
	switch svc.FormulaType {
	case catalog.FormulaStandard:
		if len(svc.Gaps) != 1 {
			return fmt.Errorf("standard formula with %d gaps: %w", len(svc.Gaps), ErrFormulaMismatch)
		}
	case catalog.FormulaDynamic:
		if len(svc.Gaps) != svc.SessionCount-1 {
			return fmt.Errorf("dynamic formula with %d gaps for %d sessions: %w",
				len(svc.Gaps), svc.SessionCount, ErrFormulaMismatch)
		}
	default:
		return fmt.Errorf("unknown formula type %q: %w", svc.FormulaType, ErrFormulaMismatch)
	}
	return nil
}
