package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FormulaType describes how session gaps are derived.
type FormulaType string

const (
	// FormulaStandard reuses a single fixed interval for every gap.
	FormulaStandard FormulaType = "standard"
	// FormulaDynamic lists an explicit gap per consecutive session pair.
	FormulaDynamic FormulaType = "dynamic"
)

// ReportPlacement attaches a report service to a session ordinal.
type ReportPlacement struct {
	Position  int       `json:"position"`
	ServiceID uuid.UUID `json:"service_id"`
}

// ServiceDefinition describes a purchasable service and its scheduling formula.
// IsDischarge is an explicit flag: nothing may infer terminal-report semantics
// from the spelling of Code.
type ServiceDefinition struct {
	ID           uuid.UUID         `json:"id"`
	TenantID     uuid.UUID         `json:"tenant_id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	TotalPrice   decimal.Decimal   `json:"total_price"`
	TaxRate      int64             `json:"tax_rate"` // informational; tenant fee reference governs
	SessionCount int               `json:"session_count"`
	FormulaType  FormulaType       `json:"formula_type"`
	Gaps         []int             `json:"gaps"`
	Reports      []ReportPlacement `json:"reports,omitempty"`
	IsReport     bool              `json:"is_report"`
	IsDischarge  bool              `json:"is_discharge"`
	IsAddon      bool              `json:"is_addon"`
}

// Interval returns the spacing used between rescheduled sessions and before
// the discharge slot: the fixed gap for standard formulas, a 7-day fallback
// for dynamic ones.
func (s *ServiceDefinition) Interval() int {
	if s.FormulaType == FormulaStandard && len(s.Gaps) == 1 {
		return s.Gaps[0]
	}
	return 7
}

// FeeReference holds a tenant's percentage splits. Percentages are whole
// numbers 0-100.
type FeeReference struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	TaxPercent       int64     `json:"tax_percent"`
	SystemPercent    int64     `json:"system_percent"`
	CounselorPercent int64     `json:"counselor_percent"`
}
