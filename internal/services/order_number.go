package services

import (
	"fmt"
	"math/rand"
	"time"
)

// DefaultOrderPrefix is used when no prefix is configured.
const DefaultOrderPrefix = "AT"

// FormatOrderNumber renders <PREFIX>-<YYYYMMDD>-<NNNN>, e.g. AT-20240115-0482.
// Only the last four decimal digits of n are used.
func FormatOrderNumber(prefix string, date time.Time, n int) string {
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), n%10000)
}

// OrderNumberGenerator produces order numbers from a clock and a random source.
// The four-digit suffix is not unique by construction; callers rely on the
// store's unique index and regenerate on conflict.
type OrderNumberGenerator struct {
	Prefix string
	Now    func() time.Time
	Intn   func(n int) int
}

// NewOrderNumberGenerator returns a generator using the wall clock and math/rand.
func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	return &OrderNumberGenerator{
		Prefix: prefix,
		Now:    time.Now,
		Intn:   rand.Intn,
	}
}

// Next returns a fresh order number for today's date (UTC).
func (g *OrderNumberGenerator) Next() string {
	return FormatOrderNumber(g.Prefix, g.Now().UTC(), g.Intn(10000))
}
