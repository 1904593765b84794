package utils

import "testing"

func TestExtractObjectKeyFromURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"raw key passthrough", "fac-1/wounds/wound-1/scan.png", "fac-1/wounds/wound-1/scan.png"},
		{"traversal rejected", "fac-1/../other/scan.png", ""},
		{"gs scheme", "gs://wound-images/fac-1/wounds/scan.png", "fac-1/wounds/scan.png"},
		{"public gcs url", "https://storage.googleapis.com/wound-images/fac-1/wounds/scan.png", "fac-1/wounds/scan.png"},
		{"query key", "https://api.example.com/uploads/object?key=fac-1%2Fwounds%2Fscan.png", "fac-1/wounds/scan.png"},
		{"empty", "", ""},
	}
	for _, c := range cases {
		if got := ExtractObjectKeyFromURL(c.in); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
