package ui

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	dateLayout  = "1/2/2006, 3:04:05 PM"
	missingDate = "—"
)

var currencyPrinter = message.NewPrinter(language.AmericanEnglish)

// formatCurrency renders a dollar amount with grouping and two decimals.
// Non-finite values render as $0.00.
func formatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0.00"
	}
	v = math.Round(v*100) / 100
	if v == 0 {
		return "$0.00"
	}
	s := currencyPrinter.Sprintf("%.2f", math.Abs(v))
	if v < 0 {
		return "-$" + s
	}
	return "$" + s
}

// formatDate renders a timestamp in local time, or a dash when missing.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return missingDate
	}
	return t.Local().Format(dateLayout)
}

// formatAgo renders how long ago t was, for the header.
func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if now.Sub(t) < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// progressPercent returns spend as a whole percentage of goal, clamped to
// 0-100. A non-positive goal yields 0.
func progressPercent(spend, goal float64) int {
	if goal <= 0 || math.IsNaN(spend) || math.IsNaN(goal) {
		return 0
	}
	pct := math.Round(spend / goal * 100)
	return int(math.Max(0, math.Min(100, pct)))
}

// Progress tiers select the bar color.
const (
	tierNew      = "new"
	tierProgress = "progress"
	tierNear     = "near"
	tierReached  = "reached"
)

func progressTier(pct int) string {
	switch {
	case pct >= 100:
		return tierReached
	case pct >= 75:
		return tierNear
	case pct > 0:
		return tierProgress
	default:
		return tierNew
	}
}

// progressBar draws pct as a bar of the given width.
func progressBar(pct, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(math.Round(float64(width) * float64(pct) / 100))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// parseAmount reads a staff-typed amount such as "12.50", "$1,200" or " 5 ".
// Unparseable input yields NaN so the client rejects it with its usual
// message.
func parseAmount(s string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
