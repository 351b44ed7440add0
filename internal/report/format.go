package report

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) > 3 {
		var b strings.Builder
		start := len(s) % 3
		if start > 0 {
			b.WriteString(s[:start])
		}
		for i := start; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatMoney formats a dollar amount with two decimals, sign before the
// currency symbol: "$12.34", "-$0.56".
func FormatMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatSignedPct formats a percentage with an explicit sign: "+3.2%".
func FormatSignedPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// Bar renders a histogram bar, one block per two percentage points, so a
// 100% bucket spans 50 characters.
func Bar(pct float64) string {
	n := int(pct / 2)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

// Round1 rounds to one decimal place. Report values are rounded only here,
// at the serialization boundary; engine arithmetic stays exact.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to four decimal places, used for share counts.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
