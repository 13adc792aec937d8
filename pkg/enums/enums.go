// Package enums holds the string-backed value sets persisted in Postgres.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](valid []T, v T) bool {
	return slices.Contains(valid, v)
}

func parseOneOf[T ~string](kind string, valid []T, raw string) (T, error) {
	if v := T(raw); oneOf(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
