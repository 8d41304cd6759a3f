package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
)

// Amounts are printed and parsed in whole units of 10^8 base units.
const unitPrecision = 8

func formatAmount(amount uint64) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(amount), -unitPrecision,
	).StringFixed(unitPrecision)
}

func parseAmount(str string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(str))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", str)
	}
	base := d.Shift(unitPrecision)
	if !base.IsPositive() || !base.Equal(base.Truncate(0)) {
		return 0, fmt.Errorf(
			"invalid amount %q: must be positive with at most %d decimals",
			str, unitPrecision,
		)
	}
	if !base.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: too large", str)
	}
	return base.BigInt().Uint64(), nil
}

func printTable(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.
		WithHasHeader().
		WithData(data).
		Render()
}

func shorten(str string) string {
	if len(str) <= 16 {
		return str
	}
	return str[:8] + ".." + str[len(str)-6:]
}
