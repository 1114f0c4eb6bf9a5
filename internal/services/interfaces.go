package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"aktieskat/internal/costbasis"
	"aktieskat/internal/danishtax"
	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
)

// RateQuote is a resolved exchange rate. Date is the date the rate belongs
// to, which precedes RequestedDate on weekends and holidays.
type RateQuote struct {
	RequestedDate time.Time         `json:"requested_date"`
	Date          time.Time         `json:"date"`
	Rate          decimal.Decimal   `json:"rate"`
	Source        models.RateSource `json:"source"`
}

// ExchangeRateServicer defines the contract for USD to DKK conversion.
type ExchangeRateServicer interface {
	Lookup(ctx context.Context, date time.Time) (*RateQuote, error)
	RateFor(ctx context.Context, date time.Time) (decimal.Decimal, error)
	ToDKK(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (decimal.Decimal, error)
	SetManualRate(ctx context.Context, date time.Time, rate decimal.Decimal) (*models.ExchangeRate, error)
	PrefetchRange(ctx context.Context, start, end time.Time) (int, error)
	ListRates(ctx context.Context, page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.ExchangeRate], error)
}

// LotInput describes a new acquisition.
type LotInput struct {
	Ticker     string
	AcquiredOn time.Time
	Quantity   decimal.Decimal
	CostBasis  decimal.Decimal
	Currency   string
	Source     models.LotSource
	SevenP     bool
	Notes      string
}

// DisposalInput describes a sale.
type DisposalInput struct {
	Ticker   string
	Date     time.Time
	Quantity decimal.Decimal
	Proceeds decimal.Decimal
	Currency string
	Notes    string
}

// TransactionInput describes a non-sale brokerage transaction.
type TransactionInput struct {
	Type     models.TransactionType
	Ticker   string
	Date     time.Time
	Quantity decimal.Decimal
	Amount   decimal.Decimal
	Currency string
	Notes    string
}

// OpenLot is a lot with shares left after replaying all disposals.
// RemainingNativeCostFIFO is the unconsumed part of the lot's own cost, in
// the lot's currency, as lot-based matching leaves it. Pooled DKK cost under
// average-cost is reported by GetPortfolioPositions.
type OpenLot struct {
	Lot                     models.Lot      `json:"lot"`
	OpenQuantity            decimal.Decimal `json:"open_quantity"`
	RemainingNativeCostFIFO decimal.Decimal `json:"remaining_native_cost_fifo"`
}

// DisposalResult is a recorded sale and the lot quantities it consumed.
type DisposalResult struct {
	Sale         models.Transaction      `json:"sale"`
	Method       costbasis.Method        `json:"method"`
	CostBasisDKK decimal.Decimal         `json:"cost_basis_dkk"`
	Consumptions []models.LotConsumption `json:"consumptions"`
}

// LotLedgerServicer defines the contract for recording lots and sales.
type LotLedgerServicer interface {
	RecordAcquisition(ctx context.Context, in LotInput) (*models.Lot, error)
	OpenLots(ctx context.Context, ticker string) ([]OpenLot, error)
	RecordDisposal(ctx context.Context, in DisposalInput) (*DisposalResult, error)
	RecordTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error)
	ReplayTicker(ctx context.Context, ticker string) (*costbasis.Plan, error)
	ApplyMethod(ctx context.Context, ticker string, method costbasis.Method) (*costbasis.Plan, error)
}

// CostBasisServicer defines the contract for per-ticker method settings.
type CostBasisServicer interface {
	Methods(ctx context.Context) (costbasis.Methods, error)
	MethodFor(ctx context.Context, ticker string) (costbasis.Method, error)
	SetMethod(ctx context.Context, ticker, method string) (*costbasis.Plan, error)
}

// CapitalGainsLineItem is one consumed lot chunk of one disposal.
type CapitalGainsLineItem struct {
	DisposalID   string           `json:"disposal_id"`
	LotID        string           `json:"lot_id"`
	Ticker       string           `json:"ticker"`
	AcquiredOn   time.Time        `json:"acquired_on"`
	DisposedOn   time.Time        `json:"disposed_on"`
	Quantity     decimal.Decimal  `json:"quantity"`
	ProceedsDKK  decimal.Decimal  `json:"proceeds_dkk"`
	CostBasisDKK decimal.Decimal  `json:"cost_basis_dkk"`
	GainDKK      decimal.Decimal  `json:"gain_dkk"`
	Method       costbasis.Method `json:"method"`
	Holding      string           `json:"holding"`
	GainType     string           `json:"gain_type"`
}

// CapitalGainsReport is the realized gains for one tax year.
type CapitalGainsReport struct {
	Year             int                        `json:"year"`
	LineItems        []CapitalGainsLineItem     `json:"line_items"`
	TotalGainDKK     decimal.Decimal            `json:"total_gain_dkk"`
	TotalLossDKK     decimal.Decimal            `json:"total_loss_dkk"`
	NetDKK           decimal.Decimal            `json:"net_dkk"`
	TotalsByGainType map[string]decimal.Decimal `json:"totals_by_gain_type"`
}

// PositionLot is an open lot inside a Position.
type PositionLot struct {
	LotID        string          `json:"lot_id"`
	AcquiredOn   time.Time       `json:"acquired_on"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostBasisDKK decimal.Decimal `json:"cost_basis_dkk"`
}

// Position is the open holding of one ticker under its current method.
type Position struct {
	Ticker         string           `json:"ticker"`
	Method         costbasis.Method `json:"method"`
	Quantity       decimal.Decimal  `json:"quantity"`
	CostBasisDKK   decimal.Decimal  `json:"cost_basis_dkk"`
	AverageCostDKK decimal.Decimal  `json:"average_cost_dkk"`
	Lots           []PositionLot    `json:"lots"`
}

// CapitalGainsServicer defines the contract for the yearly gains report.
type CapitalGainsServicer interface {
	Generate(ctx context.Context, year int) (*CapitalGainsReport, error)
	GetPortfolioPositions(ctx context.Context) ([]Position, error)
}

// DividendLine is one dividend or withholding transaction converted to DKK.
type DividendLine struct {
	TransactionID string                 `json:"transaction_id"`
	Type          models.TransactionType `json:"type"`
	Ticker        string                 `json:"ticker"`
	Date          time.Time              `json:"date"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	AmountDKK     decimal.Decimal        `json:"amount_dkk"`
}

// DividendTaxReport is the dividend income and foreign tax for one year.
// The Danish tax fields are nil for years without a tax table; the amounts
// are reported regardless.
type DividendTaxReport struct {
	Year                int              `json:"year"`
	IsUSPerson          bool             `json:"is_us_person"`
	Lines               []DividendLine   `json:"lines"`
	GrossDividendsDKK   decimal.Decimal  `json:"gross_dividends_dkk"`
	WithheldDKK         decimal.Decimal  `json:"withheld_dkk"`
	DanishTaxDKK        *decimal.Decimal `json:"danish_tax_dkk"`
	IRSTaxPaidDKK       *decimal.Decimal `json:"irs_tax_paid_dkk,omitempty"`
	ForeignTaxCreditDKK *decimal.Decimal `json:"foreign_tax_credit_dkk,omitempty"`
	NetDanishTaxDKK     *decimal.Decimal `json:"net_danish_tax_dkk"`
}

// DividendTaxServicer defines the contract for the yearly dividend report.
type DividendTaxServicer interface {
	Generate(ctx context.Context, year int, isUSPerson bool, irsTaxPaid *decimal.Decimal) (*DividendTaxReport, error)
}

// SevenPLot is an employer-granted lot counted toward the §7P totals.
type SevenPLot struct {
	LotID      string           `json:"lot_id"`
	Ticker     string           `json:"ticker"`
	AcquiredOn time.Time        `json:"acquired_on"`
	Source     models.LotSource `json:"source"`
	SevenP     bool             `json:"seven_p"`
	ValueDKK   decimal.Decimal  `json:"value_dkk"`
}

// SevenPTotals is the DKK value of equity granted in a year.
type SevenPTotals struct {
	Year          int             `json:"year"`
	CoveredDKK    decimal.Decimal `json:"covered_dkk"`
	NotCoveredDKK decimal.Decimal `json:"not_covered_dkk"`
	Lots          []SevenPLot     `json:"lots"`
}

// TaxForYear combines the year's equity totals with the computed tax.
type TaxForYear struct {
	Equity SevenPTotals      `json:"equity"`
	Result *danishtax.Result `json:"result"`
}

// TaxServicer defines the contract for income tax computations.
type TaxServicer interface {
	Calculate(in danishtax.Input) (*danishtax.Result, error)
	SevenPTotals(ctx context.Context, year int) (*SevenPTotals, error)
	ComputeForYear(ctx context.Context, year int, salary, deductions decimal.Decimal, municipalRate *decimal.Decimal) (*TaxForYear, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actor, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	List(ctx context.Context, page pagination.PageRequest, filter AuditFilter) (*pagination.PageResponse[models.AuditLog], error)
}
