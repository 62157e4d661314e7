package sanitizer

import "testing"

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Team standup  ", "Team standup"},
		{"collapse inner whitespace", "Team \t\n  standup", "Team standup"},
		{"strip control characters", "Team\x00 stand\x07up", "Team standup"},
		{"only whitespace", "   \t\n  ", ""},
		{"preserve unicode", " Café ☕ sync ", "Café ☕ sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeTitle(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := SanitizeTitle(got); again != got {
				t.Errorf("SanitizeTitle is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeID(t *testing.T) {
	if got := SanitizeID("  3f2a  "); got != "3f2a" {
		t.Errorf("SanitizeID = %q", got)
	}
}

func TestPipeline_Order(t *testing.T) {
	p := Pipeline{
		func(s string) string { return s + "a" },
		func(s string) string { return s + "b" },
	}
	if got := p.Apply("x"); got != "xab" {
		t.Errorf("Apply = %q, want xab", got)
	}
}
