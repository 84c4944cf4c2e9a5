package feed

import (
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
	}{
		{"typical", Cursor{Tier: 0, Score: 73.25, ID: 128457}},
		{"fallback tier", Cursor{Tier: 3, Score: 12.5, ID: 42}},
		{"zero score", Cursor{Score: 0, ID: 1}},
		{"high precision score", Cursor{Tier: 1, Score: 66.66666666666667, ID: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.cursor.Encode()
			decoded, err := DecodeCursor(token)
			if err != nil {
				t.Fatalf("DecodeCursor() error: %v", err)
			}
			if decoded == nil {
				t.Fatal("DecodeCursor() returned nil for valid token")
			}
			if *decoded != tt.cursor {
				t.Errorf("round trip = %+v, want %+v", *decoded, tt.cursor)
			}
		})
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	cur, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor(\"\") error: %v", err)
	}
	if cur != nil {
		t.Error("empty token should mean first page (nil cursor)")
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"base64 but not json", "bm90LWpzb24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCursor(tt.token); err == nil {
				t.Errorf("DecodeCursor(%q) should error", tt.token)
			}
		})
	}
}
