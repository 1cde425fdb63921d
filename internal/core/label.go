package core

import (
	"strings"
	"time"
)

const (
	LabelToday     = "TODAY"
	LabelYesterday = "YESTERDAY"
)

// DateLabel returns the display label for a transaction date relative to
// now: TODAY, YESTERDAY, or an upper-cased "<MON> <DAY>, <YEAR>" built
// from the transaction's own date (e.g. "DEC 25, 2025").
//
// Comparison is by calendar date in UTC, ignoring the time of day.
func DateLabel(date, now time.Time) string {
	day := startOfDay(date)
	today := startOfDay(now)

	switch {
	case day.Equal(today):
		return LabelToday
	case day.Equal(today.AddDate(0, 0, -1)):
		return LabelYesterday
	default:
		return strings.ToUpper(date.UTC().Format("Jan 2, 2006"))
	}
}

// GroupByDateLabel buckets transactions by their date label, preserving
// the input order within each bucket. Buckets appear in the order their
// label is first encountered, so a date-descending input yields groups
// from newest to oldest.
func GroupByDateLabel(transactions []Transaction, now time.Time) []TransactionGroup {
	var groups []TransactionGroup
	index := make(map[string]int)

	for _, t := range transactions {
		label := DateLabel(t.Date, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, TransactionGroup{Label: label})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}

	return groups
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
