package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"user_data", "`user_data`"},
		{"select", "`select`"},         // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"a`b`c", "`a``b``c`"},         // multiple backticks
		{"", "``"},                     // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestOrderTerm(t *testing.T) {
	tests := []struct {
		column     string
		descending bool
		expected   string
	}{
		{"id", false, "`id` ASC"},
		{"created_at", true, "`created_at` DESC"},
		{"odd`name", true, "`odd``name` DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := OrderTerm(tt.column, tt.descending)
			if result != tt.expected {
				t.Errorf("OrderTerm(%q, %v) = %q, want %q", tt.column, tt.descending, result, tt.expected)
			}
		})
	}
}
