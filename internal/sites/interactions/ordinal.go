package interactions

import "strconv"

// Ordinal renders n with its English ordinal suffix: 1st, 2nd, 3rd, 4th,
// 11th, 21st, 111th.
func Ordinal(n int) string {
	suffix := "th"
	if m := n % 100; m < 10 || m > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
