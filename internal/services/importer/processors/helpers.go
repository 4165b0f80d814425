package processors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/utils"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

var transactionLayouts = []string{
	"2006.01.02 15:04:05",
	"2006-01-02 15:04:05",
}

// parseTransactionTime accepts the bank export layouts. Cells that wrap the
// time onto a second line are joined with a space first.
func parseTransactionTime(s string) (*time.Time, error) {
	cleaned := strings.TrimSpace(lineBreaks.ReplaceAllString(s, " "))
	if cleaned == "" {
		return nil, nil
	}
	for _, l := range transactionLayouts {
		if t, err := time.ParseInLocation(l, cleaned, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction time %q matches none of %s", cleaned, strings.Join(transactionLayouts, ", "))
}

// parseAmount keeps only the digits of a cell. Empty cells are zero.
func parseAmount(field, s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(utils.OnlyDigits(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return n, nil
}
