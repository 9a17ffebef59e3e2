package emoji

import (
	"fmt"
	"math"
)

// https://unicode.org/emoji/charts/full-emoji-list.html
const (
	NewMoon      = "🌑"
	ThirdEclipse = "🌒"
	HalfEclipse  = "🌓"
	FirstEclipse = "🌔"
	FullMoon     = "🌕"
	Star         = "🌟"

	Check   = "✅"
	Cross   = "❌"
	Loading = "🔄"
	Tick    = "✓"
)

// MapBool maps a success flag to the sync icons.
func MapBool(s bool) string {
	if s {
		return Check
	}
	return Cross
}

// Sync decorates a sync status message with its icon.
func Sync(ok bool, msg string) string {
	return fmt.Sprintf("%s %s", MapBool(ok), msg)
}

// Pending decorates a sync status message of an operation in flight.
func Pending(msg string) string {
	return fmt.Sprintf("%s %s", Loading, msg)
}

// MapConfidence maps a probability in [0,1] to a moon phase.
func MapConfidence(p float64) string {
	if math.IsNaN(p) || p < 0.1 {
		return NewMoon
	}
	return MapValue(4 * p)
}

// MapValue maps the given value to an emoji
// it returns valuable results for values between [0,4]
func MapValue(value float64) string {
	if value >= 3.8 {
		return Star
	} else if value >= 3 {
		return FullMoon
	} else if value >= 2 {
		return FirstEclipse
	} else if value >= 1 {
		return HalfEclipse
	}
	return ThirdEclipse
}
