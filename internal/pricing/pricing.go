package pricing

import "github.com/shopspring/decimal"

// Amounts is the fee split for one session: what the client pays, the tax
// portion, and how the remainder divides between the practice and counselor.
type Amounts struct {
	Price           decimal.Decimal
	Tax             decimal.Decimal
	SystemAmount    decimal.Decimal
	CounselorAmount decimal.Decimal
}

// ComputeAmounts splits a total price using tenant percentages.
// Percentages are whole numbers (0-100). The tenant's configured tax
// percentage always applies; a service's nominal tax attribute is
// informational only and must not be passed here in its place.
//
// tax = total * taxPct/100; base = total - tax;
// system = base * systemPct/100; counselor = base - system.
// Tax and system are rounded to cents; counselor takes the remainder so the
// three parts always sum back to the total.
func ComputeAmounts(total decimal.Decimal, taxPercent, systemPercent int64) Amounts {
	hundred := decimal.NewFromInt(100)

	tax := total.Mul(decimal.NewFromInt(taxPercent)).Div(hundred).Round(2)
	base := total.Sub(tax)
	system := base.Mul(decimal.NewFromInt(systemPercent)).Div(hundred).Round(2)
	counselor := base.Sub(system)

	return Amounts{
		Price:           total,
		Tax:             tax,
		SystemAmount:    system,
		CounselorAmount: counselor,
	}
}
