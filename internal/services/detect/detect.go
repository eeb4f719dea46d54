// Package detect ищет регулярные платежи в списке банковских транзакций.
//
// Транзакции группируются по нормализованному имени продавца и модулю
// суммы, округлённому до центов. Группа считается подпиской, если в ней
// не меньше двух транзакций и хотя бы один интервал между соседними датами
// попадает в диапазон от 20 до 40 дней.
package detect

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/merchant"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const (
	minOccurrences = 2
	minGapDays     = 20
	maxGapDays     = 40
	renewalDays    = 30
)

// Candidate — найденная регулярная подписка.
type Candidate struct {
	Merchant      string
	Amount        decimal.Decimal
	Interval      string
	NextRenewalAt time.Time
	Occurrences   int
}

type groupKey struct {
	name   string
	amount string
}

type group struct {
	dates   []time.Time
	amounts []decimal.Decimal
}

// Detect возвращает кандидатов, отсортированных по продавцу и сумме.
func Detect(txns []models.Transaction) []Candidate {
	groups := make(map[groupKey]*group)
	for _, t := range txns {
		name := merchant.Normalize(t.Name)
		if name == "" {
			continue
		}
		amt := t.Amount.Abs()
		key := groupKey{name: name, amount: amt.Round(2).StringFixed(2)}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.dates = append(g.dates, t.Date)
		g.amounts = append(g.amounts, amt)
	}

	out := make([]Candidate, 0)
	for key, g := range groups {
		if len(g.dates) < minOccurrences || !looksMonthly(g.dates) {
			continue
		}
		out = append(out, Candidate{
			Merchant:      key.name,
			Amount:        decimal.Avg(g.amounts[0], g.amounts[1:]...).Round(2),
			Interval:      models.IntervalMonthly,
			NextRenewalAt: latest(g.dates).AddDate(0, 0, renewalDays),
			Occurrences:   len(g.dates),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Merchant != out[j].Merchant {
			return out[i].Merchant < out[j].Merchant
		}
		return out[i].Amount.LessThan(out[j].Amount)
	})
	return out
}

// looksMonthly сообщает, есть ли среди интервалов между отсортированными
// датами хотя бы один в пределах [minGapDays, maxGapDays].
func looksMonthly(dates []time.Time) bool {
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for i := 1; i < len(sorted); i++ {
		gap := daysBetween(sorted[i-1], sorted[i])
		if gap >= minGapDays && gap <= maxGapDays {
			return true
		}
	}
	return false
}

// daysBetween считает целые календарные дни между датами.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func latest(dates []time.Time) time.Time {
	last := dates[0]
	for _, d := range dates[1:] {
		if d.After(last) {
			last = d
		}
	}
	return last
}
