package utils

import "testing"

func TestFormatPhoneE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"555.123.4567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"+15551234567", "+15551234567"},
		{"+44 20 7946 0958", "+442079460958"},
		{"442079460958", "+442079460958"},
	}

	for _, c := range cases {
		if got := FormatPhoneE164(c.in); got != c.want {
			t.Errorf("FormatPhoneE164(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsE164(t *testing.T) {
	valid := []string{"+15551234567", "+442079460958", "+8613800138000"}
	for _, n := range valid {
		if !IsE164(n) {
			t.Errorf("IsE164(%q) = false, want true", n)
		}
	}

	invalid := []string{"", "5551234567", "+0551234567", "+1", "not-a-number", "+1555123456789012345"}
	for _, n := range invalid {
		if IsE164(n) {
			t.Errorf("IsE164(%q) = true, want false", n)
		}
	}
}
