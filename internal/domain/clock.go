package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Lot durations are entered as 24-hour "HH:MM" wall-clock spans.
var durationPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

func ValidLotDuration(s string) bool {
	return durationPattern.MatchString(s)
}

func ParseLotDuration(s string) (time.Duration, error) {
	if !durationPattern.MatchString(s) {
		return 0, fmt.Errorf("%q is not a valid HH:MM duration", s)
	}
	parts := strings.SplitN(s, ":", 2)
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// CombineStartDateTime resolves a listing's start date plus its "HH:mm"
// start time to an absolute instant in the business timezone. All auction
// wall-clock math runs in that one zone so buyer-entered times line up with
// computed deadlines.
func CombineStartDateTime(startDate time.Time, startTime string, loc *time.Location) (time.Time, error) {
	clock, err := time.ParseInLocation("15:04", startTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a valid HH:mm start time", startTime)
	}
	d := startDate.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}
