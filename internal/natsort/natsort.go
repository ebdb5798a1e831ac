// Package natsort orders path-like strings so that embedded numbers compare
// by value: "img2.png" sorts before "img10.png".
package natsort

import (
	"strings"

	"golang.org/x/text/cases"
)

// Compare returns -1, 0 or 1. Both strings are split into alternating runs of
// ASCII digits and non-digits. Runs that are both numeric compare by value;
// any other pair compares as case-folded text. When every shared run is equal
// the string with more runs sorts after. The empty string has no runs and so
// sorts before any non-empty string.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	ar, br := chunks(a), chunks(b)
	fold := cases.Fold()
	n := min(len(ar), len(br))
	for i := 0; i < n; i++ {
		x, y := ar[i], br[i]
		var c int
		if isDigits(x) && isDigits(y) {
			c = compareNumeric(x, y)
		} else {
			c = strings.Compare(fold.String(x), fold.String(y))
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case len(ar) < len(br):
		return -1
	case len(ar) > len(br):
		return 1
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// chunks splits s into maximal runs of digits and non-digits.
func chunks(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	digit := isDigit(s[0])
	for i := 1; i < len(s); i++ {
		if d := isDigit(s[i]); d != digit {
			out = append(out, s[start:i])
			start = i
			digit = d
		}
	}
	return append(out, s[start:])
}

// compareNumeric compares two digit runs of arbitrary length by value.
func compareNumeric(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	switch {
	case len(x) < len(y):
		return -1
	case len(x) > len(y):
		return 1
	}
	return strings.Compare(x, y)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDigits(s string) bool {
	return s != "" && isDigit(s[0])
}
