package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Width is a roll width in whole inches
type Width int

// AllowedWidths is the fixed set of widths the mills supply
var AllowedWidths = []Width{36, 44, 48, 54, 58, 60, 72}

// IsValid reports whether w is in AllowedWidths
func (w Width) IsValid() bool {
	for _, allowed := range AllowedWidths {
		if w == allowed {
			return true
		}
	}
	return false
}

func (w Width) String() string {
	return strconv.Itoa(int(w)) + "in"
}

// ParseWidth validates an inch value against AllowedWidths
func ParseWidth(inches int) (Width, error) {
	w := Width(inches)
	if !w.IsValid() {
		allowed := make([]string, len(AllowedWidths))
		for i, a := range AllowedWidths {
			allowed[i] = strconv.Itoa(int(a))
		}
		return 0, NewValidationError("width", fmt.Sprintf("%d is not one of %s", inches, strings.Join(allowed, ", ")))
	}
	return w, nil
}
