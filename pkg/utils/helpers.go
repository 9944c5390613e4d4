package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil || duration <= 0 {
		return 5 * time.Minute
	}
	return duration
}

// currencyReplacer strips currency symbols and thousands separators
var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// ParseNumber parses a plain float after trimming whitespace. Infinities are
// rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseMoney parses amounts such as "$1,200.50" or "€ 30"
func ParseMoney(s string) (float64, bool) {
	return ParseNumber(currencyReplacer.Replace(s))
}
