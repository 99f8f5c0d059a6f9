// Package pluginkit holds formatting and parsing helpers shared by the
// feature plugins.
package pluginkit

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// TimeLayout is how absolute times are shown in chat.
const TimeLayout = "2006-01-02 15:04:05"

var nonDigits = regexp.MustCompile(`\D`)

// Digits strips everything but 0-9.
func Digits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ValidNumber reports whether s holds a plausible phone number once
// cleaned.
func ValidNumber(s string) bool {
	n := len(Digits(s))
	return n >= 10 && n <= 15
}

// Toggle parses on/off style arguments.
func Toggle(arg string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "enable", "enabled", "yes", "true":
		return true, true
	case "off", "disable", "disabled", "no", "false":
		return false, true
	}
	return false, false
}

// OnOff renders a boolean the way status replies show it.
func OnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// Failed formats a user-visible failure.
func Failed(verb string, err error) string {
	return fmt.Sprintf("_Failed to %s: %v_", verb, err)
}

func plural(n int64, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// Duration renders d with its two most significant units, e.g.
// "2 hours, 5 minutes".
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return plural(days, "day") + ", " + plural(hours%24, "hour")
	case hours > 0:
		return plural(hours, "hour") + ", " + plural(minutes%60, "minute")
	case minutes > 0:
		return plural(minutes, "minute") + ", " + plural(seconds%60, "second")
	}
	return plural(seconds, "second")
}

// Uptime renders d as "1 Day, 2 Hours, 3 Minutes, 4 Seconds", skipping
// zero units.
func Uptime(d time.Duration) string {
	total := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{total / 86400, "Day"},
		{total % 86400 / 3600, "Hour"},
		{total % 3600 / 60, "Minute"},
		{total % 60, "Second"},
	}
	var out []string
	for _, p := range parts {
		switch {
		case p.n == 1:
			out = append(out, fmt.Sprintf("1 %s", p.unit))
		case p.n > 1:
			out = append(out, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}
	return strings.Join(out, ", ")
}

// Clock renders d as hh:mm:ss.
func Clock(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// Expand replaces @placeholders in template, ignoring case. Longer keys
// are replaced first so @members wins over @member.
func Expand(template string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int { return len(b) - len(a) })

	out := template
	for _, k := range keys {
		re := regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(k))
		out = re.ReplaceAllLiteralString(out, vars[k])
	}
	return out
}

// ContainsFold reports whether s contains substr, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
