package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeTimestamp coerces a loosely formatted time string into
// HH:MM:SS,mmm. Missing hour and minute fields are filled with zeros, single
// digit fields are padded and a short millisecond fraction is extended.
// Shapes it does not recognise come back unchanged apart from the
// millisecond separator, so the function never fails and is idempotent.
func NormalizeTimestamp(raw string) string {
	withComma := raw
	if strings.Count(raw, ".") == 1 {
		withComma = strings.Replace(raw, ".", ",", 1)
	}

	s := strings.TrimSpace(withComma)

	clock, millis, hasMillis := strings.Cut(s, ",")
	if hasMillis && !isDigits(millis, 1, 3) {
		return withComma
	}

	parts := strings.Split(clock, ":")
	var hours, minutes, seconds string
	switch len(parts) {
	case 3:
		hours, minutes, seconds = parts[0], parts[1], parts[2]
	case 2:
		hours, minutes, seconds = "00", parts[0], parts[1]
	case 1:
		hours, minutes, seconds = "00", "00", parts[0]
	default:
		return withComma
	}

	for _, field := range []string{hours, minutes, seconds} {
		if !isDigits(field, 1, 2) {
			return withComma
		}
	}

	millis = millis + strings.Repeat("0", 3-len(millis))

	return fmt.Sprintf("%s:%s:%s,%s",
		padLeft(hours), padLeft(minutes), padLeft(seconds), millis)
}

// ParseTimestamp converts a timestamp accepted by NormalizeTimestamp into a
// duration.
func ParseTimestamp(raw string) (time.Duration, error) {
	s := NormalizeTimestamp(raw)
	if !IsCanonicalTimestamp(s) {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}

	h, _ := strconv.Atoi(s[0:2])
	m, _ := strconv.Atoi(s[3:5])
	sec, _ := strconv.Atoi(s[6:8])
	ms, _ := strconv.Atoi(s[9:12])

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// reports whether s is exactly HH:MM:SS,mmm
func IsCanonicalTimestamp(s string) bool {
	if len(s) != 12 || s[2] != ':' || s[5] != ':' || s[8] != ',' {
		return false
	}
	return isDigits(s[0:2], 2, 2) && isDigits(s[3:5], 2, 2) &&
		isDigits(s[6:8], 2, 2) && isDigits(s[9:12], 3, 3)
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func padLeft(field string) string {
	if len(field) == 1 {
		return "0" + field
	}
	return field
}
