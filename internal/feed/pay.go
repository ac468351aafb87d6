package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/matheus3301/shiftsync/internal/model"
)

// Cents is an amount of money in hundredths.
type Cents int64

// String formats c with exactly two decimals.
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// TotalPay returns the pay for a whole shift. Duration is counted in whole
// minutes; an end time before the start is taken to fall on the next day,
// and an end equal to the start pays nothing. ok is false when either time
// is absent.
func TotalPay(s model.Shift) (Cents, bool) {
	start, ok := s.StartTime.Time()
	if !ok {
		return 0, false
	}
	end, ok := s.EndTime.Time()
	if !ok {
		return 0, false
	}
	return PayFor(start, end, s.PayPerHour), true
}

// PayFor computes rate × hours between start and end in integer cents.
func PayFor(start, end time.Time, rate float64) Cents {
	for end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	minutes := int64(end.Sub(start) / time.Minute)
	rateCents := int64(math.Round(rate * 100))
	// Round half away from zero to the nearest cent.
	total := rateCents * minutes
	q, r := total/60, total%60
	if r*2 >= 60 {
		q++
	}
	return Cents(q)
}
