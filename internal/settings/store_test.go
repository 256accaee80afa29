package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_LoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	store := NewFileStore(path)

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings != Default() {
		t.Errorf("Expected defaults, got %+v", settings)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Settings file was not created: %v", err)
	}
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "settings.json"))

	want := Settings{
		OutputDirectory: "/srv/photos",
		CaptureDelay:    2.5,
		RecordDuration:  30,
		BurstCount:      5,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFileStore_LoadNormalizes(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		check   func(t *testing.T, s Settings)
	}{
		{
			name:    "空の保存先",
			content: `{"output_directory": "", "capture_delay": 3, "record_duration": 5, "burst_count": 2}`,
			check: func(t *testing.T, s Settings) {
				if s.OutputDirectory != DefaultOutputDirectory() {
					t.Errorf("Expected default output directory, got %q", s.OutputDirectory)
				}
				if s.CaptureDelay != 3 || s.BurstCount != 2 {
					t.Errorf("Other values should be kept: %+v", s)
				}
			},
		},
		{
			name:    "不正な値",
			content: `{"output_directory": "/tmp/x", "capture_delay": -1, "record_duration": 0, "burst_count": 0}`,
			check: func(t *testing.T, s Settings) {
				d := Default()
				if s.CaptureDelay != d.CaptureDelay || s.RecordDuration != d.RecordDuration || s.BurstCount != d.BurstCount {
					t.Errorf("Expected defaults for invalid values, got %+v", s)
				}
			},
		},
		{
			name:    "壊れたJSON",
			content: `{"output_directory": `,
			check: func(t *testing.T, s Settings) {
				if s != Default() {
					t.Errorf("Expected defaults for broken file, got %+v", s)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			settings, err := NewFileStore(path).Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tc.check(t, settings)
		})
	}
}
