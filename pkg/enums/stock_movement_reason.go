package enums

import "fmt"

// StockMovementReason explains why a product's stock changed.
type StockMovementReason string

const (
	StockMovementReservation StockMovementReason = "reservation"
	StockMovementRelease     StockMovementReason = "release"
	StockMovementAdjustment  StockMovementReason = "adjustment"
)

var validStockMovementReasons = []StockMovementReason{
	StockMovementReservation,
	StockMovementRelease,
	StockMovementAdjustment,
}

func (r StockMovementReason) String() string {
	return string(r)
}

func (r StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockMovementReason converts raw input into a StockMovementReason.
func ParseStockMovementReason(value string) (StockMovementReason, error) {
	for _, candidate := range validStockMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement reason %q", value)
}
