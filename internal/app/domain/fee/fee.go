// Package fee computes the platform fee charged on paid collaborations.
package fee

import "errors"

// RateBasisPoints is the platform fee rate: 10% expressed in basis points.
const RateBasisPoints = 1000

// ErrInvalidPrice is returned for prices outside the non-negative domain.
var ErrInvalidPrice = errors.New("price must be non-negative")

// Compute returns the platform fee for a price in minor currency units,
// rounded half-up. Negative prices are rejected rather than coerced.
func Compute(price int64) (int64, error) {
	if price < 0 {
		return 0, ErrInvalidPrice
	}
	return (price*RateBasisPoints + 5000) / 10000, nil
}

// Total returns price plus the platform fee.
func Total(price int64) (int64, error) {
	f, err := Compute(price)
	if err != nil {
		return 0, err
	}
	return price + f, nil
}
