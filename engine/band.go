package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Band is a per-symbol limit-price corridor around a reference price.
// Bounds are precomputed in ticks at install time: the lower bound
// rounds up and the upper bound rounds down, so a price passes only
// when the exact decimal corridor contains a representable tick.
type Band struct {
	Reference decimal.Decimal
	Percent   decimal.Decimal
	loTicks   int64
	hiTicks   int64
}

func newBand(ref, pct decimal.Decimal, scale int32) Band {
	width := ref.Mul(pct).Div(hundred)
	return Band{
		Reference: ref,
		Percent:   pct,
		loTicks:   ref.Sub(width).Shift(scale).Ceil().IntPart(),
		hiTicks:   ref.Add(width).Shift(scale).Floor().IntPart(),
	}
}

// Check validates a limit price in ticks against the corridor.
func (b Band) Check(priceTicks int64, scale int32) error {
	if priceTicks < b.loTicks || priceTicks > b.hiTicks {
		return fmt.Errorf("%w: price %s not in [%s, %s]",
			ErrBandViolation,
			decimal.New(priceTicks, -scale),
			decimal.New(b.loTicks, -scale),
			decimal.New(b.hiTicks, -scale))
	}
	return nil
}
