// Package analytics summarizes ledger entries into the reports the bot
// sends: a two month per-category breakdown and monthly totals for the last
// year.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/simpleiot/budgetbot/data"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
)

// CategoryRow is one line of a month table
type CategoryRow struct {
	Category string   `json:"category"`
	Value    float64  `json:"value"`
	Share    float64  `json:"share"`
	Delta    *float64 `json:"delta,omitempty"`
}

// MonthTable breaks one month down by category, largest first
type MonthTable struct {
	YearMonth string        `json:"yearMonth"`
	Rows      []CategoryRow `json:"rows"`
	Total     float64       `json:"total"`
}

// TwoMonthsReport holds up to two month tables, most recent first
type TwoMonthsReport struct {
	Currency string       `json:"currency"`
	Months   []MonthTable `json:"months"`
}

// Point is the total for one month
type Point struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// TwoMonthsStart is the first day of the month two months before now
func TwoMonthsStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m-2, 1, 0, 0, 0, 0, time.UTC)
}

// YearStart is the start of the day one year before now
func YearStart(now time.Time) time.Time {
	y, m, d := now.AddDate(-1, 0, 0).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Since returns valid entries dated on or after start
func Since(entries []data.Entry, start time.Time) []data.Entry {
	var ret []data.Entry
	for _, e := range entries {
		if e.Valid() && !e.Date.Before(start) {
			ret = append(ret, e)
		}
	}
	return ret
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func yearMonth(e data.Entry) string {
	if e.YearMonth != "" {
		return e.YearMonth
	}
	return e.Date.Format(data.YearMonthFormat)
}

// TwoMonths summarizes expenses in currency since TwoMonthsStart(now). The
// delta of a category is the change against the previous month in the
// window and is left out when the category has no spending there.
func TwoMonths(entries []data.Entry, currency string, now time.Time) TwoMonthsReport {
	ret := TwoMonthsReport{Currency: currency}

	// month -> category -> values
	groups := make(map[string]map[string][]float64)
	for _, e := range Since(entries, TwoMonthsStart(now)) {
		if !strings.EqualFold(e.Currency, currency) {
			continue
		}
		ym := yearMonth(e)
		if groups[ym] == nil {
			groups[ym] = make(map[string][]float64)
		}
		groups[ym][e.Category] = append(groups[ym][e.Category], e.Value)
	}

	months := maps.Keys(groups)
	slices.Sort(months)

	sums := make(map[string]map[string]float64)
	for _, m := range months {
		sums[m] = make(map[string]float64)
		for cat, vals := range groups[m] {
			sums[m][cat] = floats.Sum(vals)
		}
	}

	// most recent two months first
	for i := len(months) - 1; i >= 0 && len(ret.Months) < 2; i-- {
		m := months[i]
		var prev map[string]float64
		if i > 0 {
			prev = sums[months[i-1]]
		}

		t := MonthTable{YearMonth: m, Total: floats.Sum(maps.Values(sums[m]))}

		for cat, v := range sums[m] {
			row := CategoryRow{Category: cat, Value: v}
			if t.Total != 0 {
				row.Share = round1(v / t.Total * 100)
			}
			if p, ok := prev[cat]; ok && p != 0 {
				d := round1((v - p) / p * 100)
				row.Delta = &d
			}
			t.Rows = append(t.Rows, row)
		}

		sort.Slice(t.Rows, func(a, b int) bool {
			if t.Rows[a].Value != t.Rows[b].Value {
				return t.Rows[a].Value > t.Rows[b].Value
			}
			return t.Rows[a].Category < t.Rows[b].Category
		})

		ret.Months = append(ret.Months, t)
	}

	return ret
}

// Monthly sums expenses in currency per calendar month since YearStart(now),
// oldest month first. An empty category includes all categories.
func Monthly(entries []data.Entry, currency, category string, now time.Time) []Point {
	groups := make(map[string][]float64)
	for _, e := range Since(entries, YearStart(now)) {
		if !strings.EqualFold(e.Currency, currency) {
			continue
		}
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		m := e.Date.Format(data.YearMonthFormat)
		groups[m] = append(groups[m], e.Value)
	}

	months := maps.Keys(groups)
	slices.Sort(months)

	ret := make([]Point, len(months))
	for i, m := range months {
		ret[i] = Point{Month: m, Value: floats.Sum(groups[m])}
	}

	return ret
}

// MonthTotal sums expenses for a category and currency in one year/month
func MonthTotal(entries []data.Entry, category, currency, ym string) float64 {
	var vals []float64
	for _, e := range entries {
		if !e.Valid() || !strings.EqualFold(e.Currency, currency) ||
			!strings.EqualFold(e.Category, category) {
			continue
		}
		if yearMonth(e) == ym {
			vals = append(vals, e.Value)
		}
	}
	return floats.Sum(vals)
}
