package main

import (
	"os"
	"path/filepath"
	"testing"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileTypes(t *testing.T) {
	wav := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"voice.wav", wav, "audio/wav"},
		{"voice", wav, "audio/wav"},
		{"clip", []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00"), "audio/ogg"},
		{"photo.JPG", []byte("not really a jpeg"), "image/jpeg"},
	}
	for _, tt := range tests {
		f, err := readFile(writeTemp(t, tt.name, tt.data))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if f.MIMEType != tt.want || f.Name != tt.name || f.Size != int64(len(tt.data)) {
			t.Errorf("%s: got %+v", tt.name, f)
		}
		if err := domain.ValidateFile(f); err != nil {
			t.Errorf("%s: rejected: %v", tt.name, err)
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := readFile(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("missing file read")
	}
}
