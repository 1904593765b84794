package utils

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		field := ve.Field()
		switch ve.Tag() {
		case "required":
			errorResponse[field] = field + " is required"
		case "email":
			errorResponse[field] = field + " must be a valid email"
		case "min":
			errorResponse[field] = field + " is below the allowed minimum"
		case "max":
			errorResponse[field] = field + " exceeds the allowed maximum"
		default:
			errorResponse[field] = field + " is invalid"
		}
	}
	return errorResponse
}

// UniqueSlice returns the input with duplicates removed, preserving order.
func UniqueSlice[T comparable](input []T) []T {
	seen := make(map[T]bool, len(input))
	out := make([]T, 0, len(input))
	for _, v := range input {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func ContainsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// SortedKeys returns map keys sorted ascending. Useful for deterministic iteration.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func NormalizeEnum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
