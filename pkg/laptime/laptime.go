// Package laptime formats lap times the way the sim community writes them.
package laptime

import (
	"fmt"
	"math"
	"time"
)

// Format renders a lap time in seconds as m:ss.mmm, e.g. 83.456 -> "1:23.456".
// Times under a minute drop the minute component. Zero or negative times
// render as "--:--.---" (an unset lap).
func Format(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "--:--.---"
	}

	d := time.Duration(seconds * float64(time.Second))

	minutes := int(d.Minutes())
	remainder := d - time.Duration(minutes)*time.Minute
	secs := remainder.Seconds()

	if minutes == 0 {
		return fmt.Sprintf("%.3f", secs)
	}

	return fmt.Sprintf("%d:%06.3f", minutes, secs)
}
