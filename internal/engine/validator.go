package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Validate.
var (
	ErrInvalidSide    = errors.New("invalid order side")
	ErrInvalidType    = errors.New("invalid order type")
	ErrPriceMissing   = errors.New("limit order requires a positive price")
	ErrQuantityTooLow = errors.New("quantity must be positive")
)

// Validate performs the pre-flight checks a simulation request must pass. It
// fails fast: the first failing check is returned. Simulate itself never
// fails, so this runs only where requests enter the process.
func Validate(order SimulatedOrder) error {
	// 1. Basic field checks.
	if order.Side != Buy && order.Side != Sell {
		return ErrInvalidSide
	}
	if order.Type != Limit && order.Type != Market {
		return ErrInvalidType
	}

	// 2. Price check. Market orders ignore any price they carry.
	if order.Type == Limit {
		if !order.LimitPrice.Valid {
			return ErrPriceMissing
		}
		if !order.LimitPrice.Decimal.IsPositive() {
			return fmt.Errorf("%w: got %s", ErrPriceMissing, order.LimitPrice.Decimal)
		}
	}

	// 3. Quantity check.
	if !order.Quantity.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrQuantityTooLow, order.Quantity)
	}
	return nil
}
