package storage

import "strconv"

// StrToUint converts a string to a uint.
// Returns 0 and an error when the string is not a valid unsigned number.
func StrToUint(s string) (uint, error) {
	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}
