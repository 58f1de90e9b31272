package transfer

import "explostock/internal/core/numerator"

const (
	// NumberPrefix starts every request number: TR-YYYYMMDD-NNNNN.
	NumberPrefix = "TR"

	// NumeratorStrategy defines the numbering strategy for transfer requests.
	// Requests are part of the regulated approval chain, so numbers are gapless.
	NumeratorStrategy = numerator.StrategyStrict
)
