package money

import "github.com/shopspring/decimal"

// Money is a signed monetary amount with cent precision. Gateway balances
// arrive as integer cents; keeping the arithmetic behind this type avoids
// mixing cents and major units when balances from many customers are summed.
type Money struct {
	amount decimal.Decimal
}

// Zero is the zero amount.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// FromCents builds an amount from integer cents (any sign).
func FromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -2)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg()}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Cents returns the amount as integer cents.
func (m Money) Cents() int64 {
	return m.amount.Mul(decimal.New(100, 0)).IntPart()
}

// String renders the amount in major units, e.g. "-12.50".
func (m Money) String() string {
	return m.amount.StringFixed(2)
}
