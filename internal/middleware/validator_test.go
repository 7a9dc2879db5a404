package middleware

import (
	"strings"
	"testing"
)

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	for _, id := range []string{"", "abc", "../etc/passwd", "{3f2504e0-4f89-11d3-9a0c-0305e82c3301}"} {
		if err := ValidateSessionID(id); err == nil {
			t.Errorf("%q accepted", id)
		}
	}
}

func TestValidateBlobKey(t *testing.T) {
	if err := ValidateBlobKey("3f2504e0-4f89-11d3-9a0c-0305e82c3301"); err != nil {
		t.Fatal(err)
	}
	if err := ValidateBlobKey("3f2504e0-4f89-11d3-9a0c-0305e82c3301.mp3"); err != nil {
		t.Fatal(err)
	}
	if err := ValidateBlobKey("x.mp3"); err == nil {
		t.Fatal("bad key accepted")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.png":            "photo.png",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\clip.wav`: "clip.wav",
		"bad\x00name\x07.jpg":  "badname.jpg",
		"  spaced.gif  ":       "spaced.gif",
		"":                     "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}

	long := strings.Repeat("é", 300)
	if got := SanitizeFileName(long); len(got) > maxFileNameLen {
		t.Errorf("len = %d", len(got))
	}
}

func TestValidateLimit(t *testing.T) {
	for in, want := range map[int]int{0: 20, -3: 20, 5: 5, 100: 100, 500: 100} {
		if got := ValidateLimit(in); got != want {
			t.Errorf("ValidateLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
