package utils

import (
	"regexp"
	"strconv"
)

var (
	intPrefixRe   = regexp.MustCompile(`^\s*[+-]?\d+`)
	floatPrefixRe = regexp.MustCompile(`^\s*[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
)

// ParseIntPrefix разбирает целое число в начале строки, остаток игнорируется
// ("12.7" -> 12, "250kt" -> 250). ok=false если число не найдено.
func ParseIntPrefix(s string) (int, bool) {
	m := intPrefixRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(trimSpaceLeft(m))
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseFloatPrefix разбирает дробное число в начале строки ("29.92inHg" -> 29.92)
func ParseFloatPrefix(s string) (float64, bool) {
	m := floatPrefixRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimSpaceLeft(m), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func trimSpaceLeft(s string) string {
	for i, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return s[i:]
		}
	}
	return ""
}
