package domain

import "time"

// Product is one inventory position as seen in a polling cycle.
type Product struct {
	ID         string
	Name       string
	Stock      float64
	MinBalance float64 // 0 means "no minimum configured"
	GroupPath  string
	Expiration time.Time // zero means "no expiration attribute"
}

// NeedsStockCheck reports whether the product participates in low-stock
// monitoring. Products without a configured minimum are skipped, matching
// the warehouse convention that only tracked positions carry one.
func (p Product) NeedsStockCheck() bool {
	return p.MinBalance > 0
}

func (p Product) NeedsExpirationCheck() bool {
	return !p.Expiration.IsZero()
}

// Snapshot is the complete set of domain data fetched in one polling cycle.
// Checkers receive the same snapshot instance and must treat it as read-only.
type Snapshot struct {
	Products  []Product
	FetchedAt time.Time
}
