package utils

import (
	"strconv"
)

// StringToUint converts a positive decimal id, returns 0 if error
func StringToUint(s string) uint {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(u)
}

// CeilDiv returns ceil(n / d) for positive d.
func CeilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
