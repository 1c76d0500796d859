package model

import "testing"

func TestBookingActive(t *testing.T) {
	tests := []struct {
		name   string
		status BookingStatus
		want   bool
	}{
		{"active booking", BookingActive, true},
		{"cancelled booking", BookingCancelled, false},
		{"unknown status", BookingStatus("Deleted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Booking{Status: tt.status}
			if got := b.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManualStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status ManualStatus
		want   bool
	}{
		{"ready", ManualReady, true},
		{"maintenance", ManualMaintenance, true},
		{"empty", ManualStatus(""), false},
		{"computed value is not settable", ManualStatus("Booked"), false},
		{"wrong case", ManualStatus("ready"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserAdmin(t *testing.T) {
	if (User{Role: RoleAdmin}).Admin() != true {
		t.Error("admin role should report Admin() = true")
	}
	if (User{Role: RoleUser}).Admin() {
		t.Error("user role should report Admin() = false")
	}
}
