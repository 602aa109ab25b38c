package donation

import (
	"github.com/shopspring/decimal"
)

// MaxDigits is the longest custom amount the keypad accepts.
const MaxDigits = 7

// KeyResult is the outcome of one keypad press.
type KeyResult int

const (
	KeyAccepted KeyResult = iota
	KeyIgnored            // non-digit, leading zero or too many digits
	KeyOverMax            // digit would exceed the maximum and was dropped
)

// Verdict is the outcome of submitting an amount.
type Verdict int

const (
	VerdictAccept  Verdict = iota
	VerdictShake           // empty, zero or below the minimum
	VerdictOverMax         // above the maximum, shown as a banner
)

// AmountEntry builds a whole-unit custom amount from keypad digits.
// The zero value is an empty entry.
type AmountEntry struct {
	digits []byte
}

// Press appends digit d unless doing so would make the amount exceed max.
func (e *AmountEntry) Press(d rune, max decimal.Decimal) KeyResult {
	if d < '0' || d > '9' {
		return KeyIgnored
	}
	if d == '0' && len(e.digits) == 0 {
		return KeyIgnored
	}
	if len(e.digits) >= MaxDigits {
		return KeyIgnored
	}

	next := decimal.RequireFromString(string(append(append([]byte(nil), e.digits...), byte(d))))
	if next.GreaterThan(max) {
		return KeyOverMax
	}
	e.digits = append(e.digits, byte(d))
	return KeyAccepted
}

// Delete removes the last digit.
func (e *AmountEntry) Delete() {
	if len(e.digits) > 0 {
		e.digits = e.digits[:len(e.digits)-1]
	}
}

// Clear empties the entry.
func (e *AmountEntry) Clear() {
	e.digits = e.digits[:0]
}

// String returns the digits typed so far.
func (e *AmountEntry) String() string {
	return string(e.digits)
}

// Value returns the entered amount, zero when empty.
func (e *AmountEntry) Value() decimal.Decimal {
	if len(e.digits) == 0 {
		return decimal.Zero
	}
	return decimal.RequireFromString(string(e.digits))
}

// Check decides whether amount may be charged.
func Check(amount, min, max decimal.Decimal) Verdict {
	switch {
	case !amount.IsPositive():
		return VerdictShake
	case amount.LessThan(min):
		return VerdictShake
	case amount.GreaterThan(max):
		return VerdictOverMax
	default:
		return VerdictAccept
	}
}
