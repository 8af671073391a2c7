package lang

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "The quick brown fox jumps over the lazy dog while the children are playing in the garden.", "en"},
		{"german", "Die Mitarbeiter haben heute im Büro eine wichtige Besprechung über das neue Projekt gehabt.", "de"},
		{"too short", "Hello there", ""},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
	if got := DetectOr("short", Default); got != Default {
		t.Errorf("DetectOr fallback = %q", got)
	}
}

func TestFromEngineCode(t *testing.T) {
	tests := map[string]string{
		"eng":     "en",
		"ger":     "de",
		"FRE":     "fr",
		"chi_sim": "zh",
		"jpn":     "ja",
		"xyz":     "en",
		"":        "en",
	}
	for in, want := range tests {
		if got := FromEngineCode(in); got != want {
			t.Errorf("FromEngineCode(%q) = %q, want %q", in, got, want)
		}
	}
}
