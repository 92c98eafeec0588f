// Package currency holds the static currency reference table: the set of
// currencies the pipeline accepts and their display names.
package currency

import "github.com/krwave/ratefeed/pkg/set"

// Info describes one supported currency.
type Info struct {
	Code        string
	DisplayName string
}

var table = map[string]Info{
	"USD": {Code: "USD", DisplayName: "미국 달러"},
	"JPY": {Code: "JPY", DisplayName: "일본 엔"},
	"EUR": {Code: "EUR", DisplayName: "유럽연합 유로"},
	"GBP": {Code: "GBP", DisplayName: "영국 파운드"},
	"CNY": {Code: "CNY", DisplayName: "중국 위안"},
	"AUD": {Code: "AUD", DisplayName: "호주 달러"},
	"CAD": {Code: "CAD", DisplayName: "캐나다 달러"},
	"CHF": {Code: "CHF", DisplayName: "스위스 프랑"},
	"HKD": {Code: "HKD", DisplayName: "홍콩 달러"},
	"SGD": {Code: "SGD", DisplayName: "싱가포르 달러"},
}

// IsKnown reports whether the code is in the supported set.
func IsKnown(code string) bool {
	_, ok := table[code]
	return ok
}

// DisplayName returns the localized name for the code, or the code itself
// when the currency is not in the table.
func DisplayName(code string) string {
	if info, ok := table[code]; ok {
		return info.DisplayName
	}
	return code
}

// KnownCodes returns the supported currency universe.
func KnownCodes() set.Set[string] {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	return set.FromSlice(codes)
}

// DefaultCodes is the currency list served when a request names none.
func DefaultCodes() []string {
	return []string{"USD", "JPY", "EUR", "GBP", "CNY"}
}
