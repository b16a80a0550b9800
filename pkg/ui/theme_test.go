package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestExpandIndicator(t *testing.T) {
	theme := TestTheme()
	tests := []struct {
		leaf, expanded bool
		want           string
	}{
		{true, false, "•"},
		{true, true, "•"},
		{false, true, "▾"},
		{false, false, "▸"},
	}
	for _, tt := range tests {
		if got := theme.ExpandIndicator(tt.leaf, tt.expanded); got != tt.want {
			t.Errorf("ExpandIndicator(%v, %v) = %q, want %q", tt.leaf, tt.expanded, got, tt.want)
		}
	}
}

func TestNameStyle(t *testing.T) {
	theme := TestTheme()
	if !theme.NameStyle(false).GetBold() {
		t.Error("folder names should be bold")
	}
	if theme.NameStyle(true).GetBold() {
		t.Error("file names should not be bold")
	}
}

func TestCursorStyleKeepsWidth(t *testing.T) {
	theme := TestTheme()
	row := theme.Cursor.Width(20).Render("name")
	if w := lipgloss.Width(row); w != 20 {
		t.Errorf("cursor row width = %d, want 20", w)
	}
	if strings.Contains(row, "\n") {
		t.Error("cursor style must not add lines")
	}
}

func TestRenderKeyHints(t *testing.T) {
	out := RenderKeyHints("q", "quit", "?", "help")
	for _, want := range []string{"q", "quit", "?", "help"} {
		if !strings.Contains(out, want) {
			t.Errorf("key hints %q missing %q", out, want)
		}
	}
}
