// Package timefmt converts rowing finish times between seconds and the
// segmented minutes/seconds/tenths form coaches type in ("6:22.1").
package timefmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned for text that is not a finish time.
var ErrInvalidTime = errors.New("invalid finish time")

// MaxSeconds is the longest finish time accepted, one day.
const MaxSeconds = 24 * 60 * 60

// Segments is a finish time split into its entry fields.
type Segments struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
	Tenths  int `json:"tenths"`
}

// FromSeconds splits seconds into segments, rounding to the nearest tenth.
// Negative input is treated as zero and input above MaxSeconds as MaxSeconds.
func FromSeconds(x float64) Segments {
	total := tenths(x)
	return Segments{
		Minutes: total / 600,
		Seconds: (total % 600) / 10,
		Tenths:  total % 10,
	}
}

// ToSeconds joins segments back into seconds.
//
// The sum is built in whole tenths and divided once, so a value with one
// decimal place survives FromSeconds/ToSeconds unchanged.
func ToSeconds(s Segments) float64 {
	return float64(s.Minutes*600+s.Seconds*10+s.Tenths) / 10
}

// Format renders seconds as "m:ss.t".
func Format(x float64) string {
	s := FromSeconds(x)
	return fmt.Sprintf("%d:%02d.%d", s.Minutes, s.Seconds, s.Tenths)
}

// Parse reads "m:ss.t", "m:ss" or plain seconds ("382.1").
func Parse(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	minutesPart, secondsPart, hasColon := strings.Cut(text, ":")
	if !hasColon {
		secs, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(secs) || secs < 0 || secs > MaxSeconds {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, text)
		}
		return ToSeconds(FromSeconds(secs)), nil
	}

	minutes, err := strconv.Atoi(minutesPart)
	if err != nil || minutes < 0 || minutes > MaxSeconds/60 {
		return 0, fmt.Errorf("%w: minutes in %q", ErrInvalidTime, text)
	}
	secs, err := strconv.ParseFloat(secondsPart, 64)
	if err != nil || math.IsNaN(secs) || secs < 0 || secs >= 60 {
		return 0, fmt.Errorf("%w: seconds in %q", ErrInvalidTime, text)
	}
	total := float64(minutes*600+tenths(secs)) / 10
	if total > MaxSeconds {
		return 0, fmt.Errorf("%w: %q is longer than a day", ErrInvalidTime, text)
	}
	return total, nil
}

func tenths(x float64) int {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if x > MaxSeconds {
		return MaxSeconds * 10
	}
	return int(math.Round(x * 10))
}
