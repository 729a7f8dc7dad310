package services_test

import (
	"regexp"
	"testing"
	"time"

	"orderdesk/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestFormatOrderNumber(t *testing.T) {
	date := time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "AT-20240115-0482", services.FormatOrderNumber("AT", date, 482))
	assert.Equal(t, "AT-20240115-0000", services.FormatOrderNumber("AT", date, 0))
	assert.Equal(t, "AT-20240115-9999", services.FormatOrderNumber("AT", date, 9999))
	assert.Equal(t, "AT-20240115-0001", services.FormatOrderNumber("AT", date, 10001))
	assert.Equal(t, "PO-20240115-0042", services.FormatOrderNumber("PO", date, -42))
}

func TestOrderNumberGenerator_Next(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	local := time.FixedZone("UTC-5", -5*60*60)
	g := &services.OrderNumberGenerator{
		Prefix: "AT",
		Now:    func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, local) },
		Intn:   func(n int) int { return n - 1 },
	}
	assert.Equal(t, "AT-20240310-9999", g.Next())
}

func TestNewOrderNumberGenerator(t *testing.T) {
	pattern := regexp.MustCompile(`^AT-\d{8}-\d{4}$`)
	g := services.NewOrderNumberGenerator("")
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, g.Next())
	}
	assert.Equal(t, "PO", services.NewOrderNumberGenerator("PO").Prefix)
}
