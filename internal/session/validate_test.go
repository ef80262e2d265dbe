package session

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{"main", ""},
		{"clinic-2", ""},
		{"front_desk", ""},
		{"a", ""},
		{strings.Repeat("x", maxNameLen), ""},
		{"", "empty"},
		{strings.Repeat("x", maxNameLen+1), "longer than"},
		{"-main", "must not start"},
		{"Main", "character 'M'"},
		{"front desk", "character ' '"},
		{"a.b", "character '.'"},
		{"a/b", "character '/'"},
		{"loja@1", "character '@'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateName(%q) = %v", tt.input, err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidName) {
				t.Fatalf("ValidateName(%q) = %v, want ErrInvalidName", tt.input, err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateName(%q) = %q, want it to mention %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	for in, want := range map[string]string{
		" Work ":   "work",
		"CLINIC_2": "clinic_2",
		"main":     "main",
	} {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
