// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPDATE ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if application restarts.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Reset periods.
const (
	ResetDaily   = "day"
	ResetMonthly = "month"
	ResetYearly  = "year"
	ResetNever   = "never"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "TR")
	Prefix string

	// DateLayout is a time layout embedded after the prefix ("" omits it)
	DateLayout string

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "day", "month", "year", "never"
	ResetPeriod string
}

// DefaultConfig returns the timestamp-based layout PREFIX-YYYYMMDD-NNNNN
// with a sequence restarting every day.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		DateLayout:  "20060102",
		PadWidth:    5,
		ResetPeriod: ResetDaily,
	}
}

// Key returns the sequence key for period.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case ResetDaily:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01_02"))
	case ResetMonthly:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case ResetYearly:
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders sequence value num for period.
func (c Config) Format(period time.Time, num int64) string {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if c.DateLayout != "" {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format(c.DateLayout), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, padWidth, num)
}
