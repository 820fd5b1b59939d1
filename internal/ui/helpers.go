package ui

import (
	"fmt"
	"strings"
	"time"
)

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// truncate shortens value to limit runes, ending with an ellipsis.
func truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

// cell pads or truncates value to width, leaving one column of spacing.
// A zero width leaves the value as is.
func cell(value string, width int) string {
	if width <= 0 {
		return value
	}
	v := truncate(value, width-1)
	return v + strings.Repeat(" ", width-len([]rune(v)))
}

// stripFormatting removes IRC bold, color, italic, underline and reset
// control codes.
func stripFormatting(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0x02, 0x0f, 0x16, 0x1d, 0x1f:
			continue
		case 0x03:
			// \x03 followed by up to two digits, optionally ",NN"
			j := i + 1
			j = skipDigits(s, j, 2)
			if j < len(s) && s[j] == ',' && j+1 < len(s) && isDigit(s[j+1]) {
				j = skipDigits(s, j+1, 2)
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func skipDigits(s string, i, max int) int {
	for n := 0; n < max && i < len(s) && isDigit(s[i]); n++ {
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
