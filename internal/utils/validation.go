package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// Alphanumeric, underscore, hyphen and dot. UUIDs and the numeric ids of
	// the incident and responder services both fit.
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// ValidateID validates that an ID is safe and within reasonable limits
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if len(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}

	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// SanitizeInput removes HTML tags and surrounding whitespace.
func SanitizeInput(input string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(input, ""))
}

// FieldErrors collects validation messages per request field, in the shape
// returned to clients on 400 responses.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Check records err under field when it is not nil.
func (fe FieldErrors) Check(field string, err error) {
	if err != nil {
		fe.Add(field, err.Error())
	}
}

// Required records a message when a field was not supplied.
func (fe FieldErrors) Required(field string, present bool) bool {
	if !present {
		fe.Add(field, field+" is required")
	}
	return present
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// ValidateCoordinate checks a latitude/longitude pair, recording problems
// under latField and lonField.
func ValidateCoordinate(fe FieldErrors, latField string, lat *float64, lonField string, lon *float64) {
	if fe.Required(latField, lat != nil) {
		fe.Check(latField, ValidateLatitude(*lat))
	}
	if fe.Required(lonField, lon != nil) {
		fe.Check(lonField, ValidateLongitude(*lon))
	}
}
