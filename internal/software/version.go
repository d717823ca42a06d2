package software

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned for version strings that are not dotted
// sequences of non-negative integers.
var ErrInvalidVersion = errors.New("invalid version")

// ParseVersion splits a dotted version string into numeric components.
func ParseVersion(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	parts := strings.Split(v, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
		}
		nums[i] = n
	}
	return nums, nil
}

// CompareVersions compares a and b component-wise as numbers. Missing
// trailing components count as zero, so "4.1" equals "4.1.0".
// It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	av, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	bv, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	for i := 0; i < max(len(av), len(bv)); i++ {
		var x, y int
		if i < len(av) {
			x = av[i]
		}
		if i < len(bv) {
			y = bv[i]
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
	}
	return 0, nil
}

// AtLeast reports whether version is newer than or equal to minimum.
func AtLeast(version, minimum string) (bool, error) {
	cmp, err := CompareVersions(version, minimum)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}
