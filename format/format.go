package format

import (
	"fmt"
	"time"
)

// HumanNumber renders token and example counts, e.g. 12.5K.
func HumanNumber(b uint64) string {
	const (
		Thousand = 1000
		Million  = Thousand * 1000
		Billion  = Million * 1000
	)

	switch {
	case b >= Billion:
		return decimalPlace(float64(b)/Billion) + "B"
	case b >= Million:
		return decimalPlace(float64(b)/Million) + "M"
	case b >= Thousand:
		return decimalPlace(float64(b)/Thousand) + "K"
	default:
		return fmt.Sprintf("%d", b)
	}
}

func decimalPlace(number float64) string {
	switch {
	case number >= 100:
		return fmt.Sprintf("%.0f", number)
	case number >= 10:
		return fmt.Sprintf("%.1f", number)
	default:
		return fmt.Sprintf("%.2f", number)
	}
}

// Duration limits the rendering of d to 2 units.
func Duration(d time.Duration) string {
	if d >= 100*time.Hour {
		return "99h+"
	}

	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}

	return d.Round(time.Second).String()
}
