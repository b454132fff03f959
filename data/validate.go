package data

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// input limits
const (
	MaxValue             = 10000000
	MaxDescriptionLength = 200
)

// ValidateValue parses an amount typed by the user
func ValidateValue(text string) (float64, error) {
	v, err := parseNumber(text)
	if err != nil {
		return 0, &ValidationError{Msg: "Please enter a valid number"}
	}

	if v <= 0 || v > MaxValue {
		return 0, &ValidationError{
			Msg: fmt.Sprintf("Value must be between 0 and %v", MaxValue)}
	}

	return v, nil
}

// ValidateDescription trims and checks a description typed by the user
func ValidateDescription(text string) (string, error) {
	d := strings.TrimSpace(text)
	if d == "" {
		return "", &ValidationError{Msg: "Description cannot be empty"}
	}

	if utf8.RuneCountInString(text) > MaxDescriptionLength {
		return "", &ValidationError{
			Msg: fmt.Sprintf("Description cannot be longer than %v characters",
				MaxDescriptionLength)}
	}

	return d, nil
}
