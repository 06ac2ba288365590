package ledger

import "time"

// AdjustmentType enumerates supported stock movements.
type AdjustmentType string

const (
	// AdjustmentTypeAdjustment represents a manual correction.
	AdjustmentTypeAdjustment AdjustmentType = "ADJUSTMENT"
	// AdjustmentTypeTransfer used for transfer legs between locations.
	AdjustmentTypeTransfer AdjustmentType = "TRANSFER"
	// AdjustmentTypeSale represents an order deduction.
	AdjustmentTypeSale AdjustmentType = "SALE"
	// AdjustmentTypeDeduction represents any other outbound movement.
	AdjustmentTypeDeduction AdjustmentType = "DEDUCTION"
	// AdjustmentTypeRestock represents inbound stock.
	AdjustmentTypeRestock AdjustmentType = "RESTOCK"
	// AdjustmentTypeAudit marks non-quantity audit events; the only type
	// permitted to carry a zero delta.
	AdjustmentTypeAudit AdjustmentType = "AUDIT"
)

// IsValid reports whether the type is one of the known movements.
func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentTypeAdjustment, AdjustmentTypeTransfer, AdjustmentTypeSale,
		AdjustmentTypeDeduction, AdjustmentTypeRestock, AdjustmentTypeAudit:
		return true
	default:
		return false
	}
}

// StockLevel is the current on-hand count for one (product, location) pair.
// Quantity never goes below zero after a committed adjustment; Version
// increments exactly once per successful mutation and doubles as the
// optimistic-lock token.
type StockLevel struct {
	ProductID  int64
	LocationID int64
	Quantity   int64
	Version    int64
	UpdatedAt  time.Time
}

// LogEntry is one immutable row of the adjustment log. Entries are never
// updated or deleted; the sum of deltas per (product, location) equals the
// current StockLevel quantity.
type LogEntry struct {
	ID         int64
	ProductID  int64
	LocationID int64
	UserID     int64
	Delta      int64
	Type       AdjustmentType
	Reference  string
	OccurredAt time.Time
}

// AdjustmentInput describes a single stock adjustment request.
type AdjustmentInput struct {
	UserID          int64
	ProductID       int64
	LocationID      int64
	Delta           int64
	Type            AdjustmentType
	Reference       string
	ExpectedVersion *int64
}

// AdjustmentResult is returned on a committed adjustment.
type AdjustmentResult struct {
	Entry       LogEntry
	NewQuantity int64
	NewVersion  int64
}

// BatchItem is one line of an all-or-nothing batch.
type BatchItem struct {
	ProductID       int64
	LocationID      int64
	Delta           int64
	ExpectedVersion *int64
}

// BatchInput groups N adjustments that commit or abort as a unit.
type BatchInput struct {
	UserID    int64
	Type      AdjustmentType
	Reference string
	Items     []BatchItem
}

// BatchResult reports a committed batch: the generated transaction id and
// every log entry it produced, in item order.
type BatchResult struct {
	TransactionID string
	Entries       []LogEntry
}

// ItemStatus distinguishes the two terminal outcomes of a batch item.
type ItemStatus int

const (
	// ItemApplied means the item's adjustment was staged inside the batch.
	ItemApplied ItemStatus = iota
	// ItemFailed means the item raised and aborted the batch.
	ItemFailed
)

// ItemOutcome is the closed union of per-item results. At most one item in a
// batch carries ItemFailed; every item before it is discarded on abort.
type ItemOutcome struct {
	Status ItemStatus
	Item   BatchItem
	Entry  LogEntry
	Err    error
}

// Availability is the validator's advisory read of current stock.
type Availability struct {
	Valid     bool
	Current   int64
	Required  int64
	Shortfall int64
}

// LogFilter selects adjustment log entries, newest first.
type LogFilter struct {
	ProductID  int64
	LocationID int64
	Limit      int
	Offset     int
}
