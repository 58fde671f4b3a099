package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errAmountFormat = errors.New("enter an amount like 12.50")

// FormatMoney renders minor units with two decimals.
func FormatMoney(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseAmount reads a decimal amount typed by the user into minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, errAmountFormat
	}
	if len(frac) > 2 {
		return 0, errAmountFormat
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 || strings.HasPrefix(whole, "+") {
		return 0, errAmountFormat
	}
	f, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, errAmountFormat
	}
	return w*100 + int64(f), nil
}
