// Package merchant приводит названия продавцов из банковских транзакций
// к каноническому виду.
package merchant

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var noise = []string{" inc", " llc", " ltd", ".com", " subscription", " member", "*", "-", "_", ",", "#"}

// alias сопоставляет каноническое имя набору альтернатив. Альтернатива
// срабатывает, если строка содержит все её подстроки.
type alias struct {
	name string
	any  [][]string
}

// Порядок важен: применяется первое совпадение.
var aliases = []alias{
	{name: "Netflix", any: [][]string{{"netflix"}}},
	{name: "Spotify", any: [][]string{{"spotify"}}},
	{name: "LA Fitness", any: [][]string{{"la fitness"}, {"lafitness"}}},
	{name: "Apple Services", any: [][]string{{"apple", "services"}}},
	{name: "Microsoft", any: [][]string{{"microsoft"}}},
	{name: "Google/YouTube", any: [][]string{{"google"}, {"youtube"}}},
}

var titleCaser = cases.Title(language.Und)

// Normalize возвращает каноническое имя продавца. Известные продавцы
// берутся из таблицы, остальные переводятся в Title Case.
// Пустая строка остаётся пустой.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	for _, n := range noise {
		s = strings.ReplaceAll(s, n, " ")
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	for _, a := range aliases {
		if a.matches(s) {
			return a.name
		}
	}
	return titleCaser.String(s)
}

func (a alias) matches(s string) bool {
	for _, tokens := range a.any {
		all := true
		for _, tok := range tokens {
			if !strings.Contains(s, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
