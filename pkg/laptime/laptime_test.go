package laptime

import "testing"

func TestFormat(t *testing.T) {
	formatTests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{name: "over a minute", seconds: 83.456, expected: "1:23.456"},
		{name: "whole minutes", seconds: 120, expected: "2:00.000"},
		{name: "under a minute", seconds: 59.999, expected: "59.999"},
		{name: "unset lap", seconds: 0, expected: "--:--.---"},
		{name: "negative", seconds: -4, expected: "--:--.---"},
		{name: "long lap", seconds: 512.103, expected: "8:32.103"},
	}

	for _, test := range formatTests {
		t.Run(test.name, func(t *testing.T) {
			if formatted := Format(test.seconds); formatted != test.expected {
				t.Errorf("Format(%v) = %q, expected %q", test.seconds, formatted, test.expected)
			}
		})
	}
}
