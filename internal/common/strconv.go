package common

import "strconv"

// AtoiDefault parses value as an int, returning def for empty or
// malformed input.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// Int64Default parses value as an int64, returning def for empty or
// malformed input. Query parameters carrying entity ids go through it.
func Int64Default(value string, def int64) int64 {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
