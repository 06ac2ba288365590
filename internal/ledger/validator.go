package ledger

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// QuantityReader is the read-side port the validator consumes.
type QuantityReader interface {
	Quantity(ctx context.Context, productID, locationID int64) (int64, error)
}

// Validator is the advisory availability check consulted before destructive
// adjustments. It never mutates state; the authoritative check happens at
// write time through the conditional version write, because the quantity can
// change between this read and the adjustment.
type Validator struct {
	reads QuantityReader
}

// NewValidator constructs Validator.
func NewValidator(reads QuantityReader) *Validator {
	return &Validator{reads: reads}
}

// Validate reports whether the pair currently holds at least required units.
// A missing row counts as zero on hand.
func (v *Validator) Validate(ctx context.Context, productID, locationID, required int64) (Availability, error) {
	if productID == 0 || locationID == 0 {
		return Availability{}, errors.New("ledger: product and location required")
	}
	if required < 0 {
		return Availability{}, errors.New("ledger: required quantity must be >= 0")
	}
	current, err := v.reads.Quantity(ctx, productID, locationID)
	if err != nil {
		return Availability{}, err
	}
	avail := Availability{
		Valid:    current >= required,
		Current:  current,
		Required: required,
	}
	if !avail.Valid {
		avail.Shortfall = required - current
	}
	return avail, nil
}

// AvailabilityQuery is one pair to check in a multi-item validation.
type AvailabilityQuery struct {
	ProductID  int64
	LocationID int64
	Required   int64
}

// ValidateMany checks several pairs concurrently and returns results in input
// order. Like Validate it is advisory only; a batch adjustment can still fail
// at write time.
func (v *Validator) ValidateMany(ctx context.Context, queries []AvailabilityQuery) ([]Availability, error) {
	results := make([]Availability, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, q := range queries {
		g.Go(func() error {
			avail, err := v.Validate(ctx, q.ProductID, q.LocationID, q.Required)
			if err != nil {
				return err
			}
			results[i] = avail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
