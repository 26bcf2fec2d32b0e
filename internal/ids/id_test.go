package ids

import "testing"

func TestNewRoundTripsThroughString(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if id.IsZero() {
		t.Fatal("a freshly generated id should not be zero")
	}
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", id.String(), err)
	}
	if parsed != id {
		t.Fatalf("round-trip mismatch: got %v, want %v", parsed, id)
	}
}

func TestParseRejectsWrongLength(t *testing.T) {
	if _, err := Parse("abc"); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID for short string, got %v", err)
	}
	if _, err := Parse(""); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID for empty string, got %v", err)
	}
}

func TestParseRejectsNonHex(t *testing.T) {
	if _, err := Parse("zzzzzzzzzzzzzzzzzzzzzzzz"); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID for non-hex input, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	id := MustNew()
	data, err := id.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got ID
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got != id {
		t.Fatalf("JSON round-trip mismatch: got %v, want %v", got, id)
	}
}

func TestZeroIDMarshalsNull(t *testing.T) {
	var zero ID
	data, err := zero.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != "null" {
		t.Fatalf("expected null for zero id, got %s", data)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"50mm Lens":          "50mm-lens",
		"  Leading/Trailing ": "leading/trailing",
		"Multiple   Spaces":  "multiple-spaces",
		"Already-Hyphenated": "already-hyphenated",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}
