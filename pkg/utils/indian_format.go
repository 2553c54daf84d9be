package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatINR formats an amount in rupees with Indian digit grouping
// (₹12,34,567.89). Amounts are rounded to the paisa first.
func FormatINR(amount float64) string {
	s := groupPaise(amount)
	if strings.HasPrefix(s, "-") {
		return "-₹" + s[1:]
	}
	return "₹" + s
}

// FormatPrice formats an index or stock level with Indian digit grouping and
// no currency symbol, e.g. 25012.5 → "25,012.50".
func FormatPrice(price float64) string {
	return groupPaise(price)
}

// FormatPoints formats an index/stock move in points with sign.
// e.g., 42.5 → "+42.50 pts", -12 → "-12.00 pts"
func FormatPoints(pts float64) string {
	return fmt.Sprintf("%+.2f pts", pts)
}

// FormatVolume formats a contract or share count in lakhs and crores.
// e.g., 1500000 → "15.00 L", 25000000 → "2.50 Cr"
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e7:
		return fmt.Sprintf("%.2f Cr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%.2f L", v/1e5)
	case v >= 1e3:
		return fmt.Sprintf("%.2f K", v/1e3)
	default:
		return strconv.FormatInt(volume, 10)
	}
}

// groupPaise rounds v to two decimals and groups the integer part the Indian
// way: the last three digits, then pairs.
func groupPaise(v float64) string {
	paise := int64(math.Round(v * 100))
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s%s.%02d", sign, groupIndian(strconv.FormatInt(paise/100, 10)), paise%100)
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	parts = append([]string{head}, parts...)
	return strings.Join(parts, ",") + "," + tail
}
