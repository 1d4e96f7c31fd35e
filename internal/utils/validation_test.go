package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid simple ID",
			id:      "mission_123",
			wantErr: false,
		},
		{
			name:    "valid uuid",
			id:      "b3f1c2d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
			wantErr: false,
		},
		{
			name:    "empty ID",
			id:      "",
			wantErr: true,
			errMsg:  "id cannot be empty",
		},
		{
			name:    "ID too long",
			id:      strings.Repeat("a", 101),
			wantErr: true,
			errMsg:  "id too long (max 100 characters)",
		},
		{
			name:    "ID with invalid characters",
			id:      "mission_123<script>",
			wantErr: true,
			errMsg:  "id contains invalid characters",
		},
		{
			name:    "ID with SQL injection attempt",
			id:      "mission_'; DROP TABLE responder_locations; --",
			wantErr: true,
			errMsg:  "id contains invalid characters",
		},
		{
			name:    "ID with path traversal",
			id:      "../../../etc/passwd",
			wantErr: true,
			errMsg:  "id contains invalid characters",
		},
		{
			name:    "valid ID with hyphens",
			id:      "incident-123_mission-456",
			wantErr: false,
		},
		{
			name:    "valid ID with dots",
			id:      "incident.123_mission.456",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err, "ValidateID should return error for invalid ID")
				assert.Contains(t, err.Error(), tt.errMsg, "Error message should contain expected text")
			} else {
				assert.NoError(t, err, "ValidateID should not return error for valid ID")
			}
		})
	}
}

func TestValidateLatitude(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid latitude",
			lat:     38.9072,
			wantErr: false,
		},
		{
			name:    "valid latitude at equator",
			lat:     0.0,
			wantErr: false,
		},
		{
			name:    "valid latitude at north pole",
			lat:     90.0,
			wantErr: false,
		},
		{
			name:    "valid latitude at south pole",
			lat:     -90.0,
			wantErr: false,
		},
		{
			name:    "latitude too high",
			lat:     90.1,
			wantErr: true,
			errMsg:  "latitude must be between -90 and 90",
		},
		{
			name:    "latitude too low",
			lat:     -90.1,
			wantErr: true,
			errMsg:  "latitude must be between -90 and 90",
		},
		{
			name:    "latitude way too high",
			lat:     180.0,
			wantErr: true,
			errMsg:  "latitude must be between -90 and 90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLatitude(tt.lat)
			if tt.wantErr {
				assert.Error(t, err, "ValidateLatitude should return error for invalid latitude")
				assert.Contains(t, err.Error(), tt.errMsg, "Error message should contain expected text")
			} else {
				assert.NoError(t, err, "ValidateLatitude should not return error for valid latitude")
			}
		})
	}
}

func TestValidateLongitude(t *testing.T) {
	tests := []struct {
		name    string
		lon     float64
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid longitude",
			lon:     -77.0369,
			wantErr: false,
		},
		{
			name:    "valid longitude at prime meridian",
			lon:     0.0,
			wantErr: false,
		},
		{
			name:    "valid longitude at international date line east",
			lon:     180.0,
			wantErr: false,
		},
		{
			name:    "valid longitude at international date line west",
			lon:     -180.0,
			wantErr: false,
		},
		{
			name:    "longitude too high",
			lon:     180.1,
			wantErr: true,
			errMsg:  "longitude must be between -180 and 180",
		},
		{
			name:    "longitude too low",
			lon:     -180.1,
			wantErr: true,
			errMsg:  "longitude must be between -180 and 180",
		},
		{
			name:    "longitude way too high",
			lon:     360.0,
			wantErr: true,
			errMsg:  "longitude must be between -180 and 180",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLongitude(tt.lon)
			if tt.wantErr {
				assert.Error(t, err, "ValidateLongitude should return error for invalid longitude")
				assert.Contains(t, err.Error(), tt.errMsg, "Error message should contain expected text")
			} else {
				assert.NoError(t, err, "ValidateLongitude should not return error for valid longitude")
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "normal input unchanged",
			input:    "normal input",
			expected: "normal input",
		},
		{
			name:     "script tags removed",
			input:    "<script>alert('xss')</script>normal",
			expected: "alert('xss')normal",
		},
		{
			name:     "html tags removed",
			input:    "<div>content</div>",
			expected: "content",
		},
		{
			name:     "multiple tags removed",
			input:    "<p><strong>bold</strong> text</p>",
			expected: "bold text",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only tags",
			input:    "<script></script><div></div>",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeInput(tt.input)
			assert.Equal(t, tt.expected, result, "SanitizeInput should return expected result")
		})
	}
}

func TestFieldErrors(t *testing.T) {
	lat, lon := 34.18323, -77.90999
	badLat := 91.0

	t.Run("valid coordinate", func(t *testing.T) {
		fe := FieldErrors{}
		ValidateCoordinate(fe, "lat", &lat, "lon", &lon)
		assert.True(t, fe.Empty())
	})

	t.Run("missing coordinate", func(t *testing.T) {
		fe := FieldErrors{}
		ValidateCoordinate(fe, "lat", nil, "lon", &lon)
		assert.Equal(t, []string{"lat is required"}, fe["lat"])
		assert.NotContains(t, fe, "lon")
	})

	t.Run("out of range coordinate", func(t *testing.T) {
		fe := FieldErrors{}
		ValidateCoordinate(fe, "steps[0].lat", &badLat, "steps[0].lon", &lon)
		assert.Equal(t, []string{"latitude must be between -90 and 90"}, fe["steps[0].lat"])
	})

	t.Run("check ignores nil errors", func(t *testing.T) {
		fe := FieldErrors{}
		fe.Check("id", nil)
		fe.Check("status", ValidateID(""))
		assert.Len(t, fe, 1)
		assert.Equal(t, []string{"id cannot be empty"}, fe["status"])
	})
}
