package ui

import "testing"

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")

	t.Setenv("PLANNERD_DARK_MODE", "1")
	dark := DetectTheme()
	if !dark.IsDark {
		t.Fatalf("expected dark theme when PLANNERD_DARK_MODE=1")
	}

	t.Setenv("PLANNERD_DARK_MODE", "")
	light := DetectTheme()
	if light.IsDark {
		t.Fatalf("expected light theme when PLANNERD_DARK_MODE is unset")
	}
}

func TestDetectThemeFromColorFGBG(t *testing.T) {
	t.Setenv("PLANNERD_DARK_MODE", "")

	t.Setenv("COLORFGBG", "15;0")
	if !DetectTheme().IsDark {
		t.Fatalf("expected dark theme for a black background")
	}

	t.Setenv("COLORFGBG", "0;15")
	if DetectTheme().IsDark {
		t.Fatalf("expected light theme for a white background")
	}
}

func TestThemeFromName(t *testing.T) {
	if ThemeFromName("dark") != DarkTheme() {
		t.Error("dark name should resolve the dark theme")
	}
	if ThemeFromName("light") != LightTheme() {
		t.Error("light name should resolve the light theme")
	}
}
