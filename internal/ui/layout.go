package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which email and phone are hidden.
	LayoutCompactWidth = 100

	// LayoutLastVisitWidth is the minimum width to show the last visit column.
	LayoutLastVisitWidth = 130
)

// Activity view limits.
const (
	// ActivityLineLimit is the number of proxy log lines kept on screen.
	ActivityLineLimit = 500
)

// Timing constants.
const (
	// SearchDebounce is how long typing must pause before a search is sent.
	SearchDebounce = 300 * time.Millisecond

	// ToastDuration is how long a toast stays visible.
	ToastDuration = 2 * time.Second

	// RequestTimeout bounds each backend call issued from the console.
	RequestTimeout = 20 * time.Second

	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second
)

// QuickAmounts are the one-key spend amounts bound to 1-5.
var QuickAmounts = []float64{1, 5, 10, 20, 50}
