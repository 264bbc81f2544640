package validation

import (
	"errors"
	"testing"
	"time"
)

func TestValidateStay(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		wantErr  error
	}{
		{
			name:    "valid future stay",
			checkIn: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC),
			wantErr: nil,
		},
		{
			name:    "check-in today is allowed",
			checkIn: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
			wantErr: nil,
		},
		{
			name:    "check-out equals check-in",
			checkIn: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
			wantErr: ErrInvalidDates,
		},
		{
			name:    "check-out before check-in",
			checkIn: time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
			wantErr: ErrInvalidDates,
		},
		{
			name:    "past check-in",
			checkIn: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
			wantErr: ErrPastCheckIn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStay(tt.checkIn, tt.checkOut, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateStay() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "local with leading zero", raw: "0701234567", want: "+256701234567"},
		{name: "already international", raw: "+256701234567", want: "+256701234567"},
		{name: "spaces and dashes", raw: "0701 234-567", want: "+256701234567"},
		{name: "parentheses", raw: "(0701) 234567", want: "+256701234567"},
		{name: "bare national number", raw: "701234567", want: "+256701234567"},
		{name: "letters rejected", raw: "0701abc456", wantErr: true},
		{name: "empty rejected", raw: "", wantErr: true},
		{name: "too short rejected", raw: "0123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, "+256")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePhone(%q) expected error, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
