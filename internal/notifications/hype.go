package notifications

// RoundToHypeMinute maps minutes remaining until puck drop onto the reminder
// thresholds (ascending). It returns the first threshold m for which
// remaining-m is under the grace window, and false once remaining exceeds
// the largest threshold.
func RoundToHypeMinute(remaining int, thresholds []int) (int, bool) {
	if len(thresholds) == 0 || remaining > thresholds[len(thresholds)-1] {
		return 0, false
	}
	for _, m := range thresholds {
		if remaining-m < hypeGraceMinutes {
			return m, true
		}
	}
	return 0, false
}
