package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	plotsDir := filepath.Join(tmpDir, "plots")
	logsDir := filepath.Join(tmpDir, "logs")
	if err := os.MkdirAll(plotsDir, 0755); err != nil {
		t.Fatalf("Failed to create plots directory: %v", err)
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		t.Fatalf("Failed to create logs directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logsDir, "session.csv"), []byte("t"), 0644); err != nil {
		t.Fatalf("Failed to create log file: %v", err)
	}

	// a link inside plots pointing at the logs
	link := filepath.Join(plotsDir, "logs-link")
	if err := os.Symlink(logsDir, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{"file in directory", filepath.Join(plotsDir, "trajectory_u01_left_hand.png"), plotsDir, false},
		{"nested new file", filepath.Join(plotsDir, "run", "speed.png"), plotsDir, false},
		{"dot dot escape", filepath.Join(plotsDir, "..", "logs", "session.csv"), plotsDir, true},
		{"relative escape", "../../../etc/passwd", plotsDir, true},
		{"absolute outside", "/etc/passwd", plotsDir, true},
		{"through symlink", filepath.Join(link, "session.csv"), plotsDir, true},
		{"new file through symlink", filepath.Join(link, "new.csv"), plotsDir, true},
		{"symlink itself", link, plotsDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveWithin(dir, "speed_u01_left_hand.png")
	if err != nil {
		t.Fatalf("ResolveWithin() error = %v", err)
	}
	if want := filepath.Join(dir, "speed_u01_left_hand.png"); got != want {
		t.Errorf("ResolveWithin() = %q, want %q", got, want)
	}

	for _, name := range []string{"", ".", "..", "../x.png", "a/b.png", `a\b.png`} {
		if _, err := ResolveWithin(dir, name); err == nil {
			t.Errorf("ResolveWithin(%q) expected error", name)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"left_hand", "left_hand"},
		{"serial:/dev/ttyUSB0", "serial_dev_ttyUSB0"},
		{"a  b//c", "a_b_c"},
		{"..hidden", "hidden"},
		{"", "unknown"},
		{"///", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
