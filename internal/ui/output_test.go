package ui

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/fatih/color"
)

// captureOutput collects everything a helper prints, with colors off.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	oldNoColor := color.NoColor
	oldOutput := color.Output
	color.NoColor = true
	var colored bytes.Buffer
	color.Output = &colored

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	oldStdout := os.Stdout
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout
	color.Output = oldOutput
	color.NoColor = oldNoColor

	plain, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	return colored.String() + string(plain)
}

func TestStep(t *testing.T) {
	got := captureOutput(t, func() { Step(2, 5, "parsing statement") })
	if want := "[2/5] parsing statement\n"; got != want {
		t.Errorf("Step() printed %q, want %q", got, want)
	}
}

func TestPlainColorLines(t *testing.T) {
	if got := captureOutput(t, func() { BlueText("details") }); got != "details\n" {
		t.Errorf("BlueText() printed %q", got)
	}
	if got := captureOutput(t, func() { YellowText("careful") }); got != "careful\n" {
		t.Errorf("YellowText() printed %q", got)
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"shorter than width", "Hello", 15, "     Hello"},
		{"even padding", "Test", 10, "   Test"},
		{"equal to width", "1234567890", 10, "1234567890"},
		{"longer than width", "this is a long string", 10, "this is a long string"},
		{"empty string", "", 4, "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := center(tt.text, tt.width); got != tt.want {
				t.Errorf("center(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}
