package metadata

import (
	"strings"
	"time"

	"meanrev/internal/domain"
)

// FilterByAge returns the companies at least minYears old as of asOf,
// preserving order. A non-positive minYears disables the filter.
func FilterByAge(companies []domain.CompanyInfo, minYears int, asOf time.Time) []domain.CompanyInfo {
	if minYears <= 0 {
		return companies
	}
	year := asOf.Year()
	out := make([]domain.CompanyInfo, 0, len(companies))
	for _, c := range companies {
		if c.Age(year) >= minYears {
			out = append(out, c)
		}
	}
	return out
}

// FilterByCountry returns the companies whose country is in the allow-list,
// compared case-insensitively, preserving order. An empty allow-list
// disables the filter.
func FilterByCountry(companies []domain.CompanyInfo, allowed []string) []domain.CompanyInfo {
	if len(allowed) == 0 {
		return companies
	}
	set := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		set[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	out := make([]domain.CompanyInfo, 0, len(companies))
	for _, c := range companies {
		if _, ok := set[strings.ToUpper(c.Country)]; ok {
			out = append(out, c)
		}
	}
	return out
}
