package reaction

import "testing"

func TestNormalize_CanonicalTag(t *testing.T) {
	got, err := Normalize("like")
	if err != nil || got != "like" {
		t.Fatalf("Normalize(like) = %q, %v", got, err)
	}
}

func TestNormalize_UnicodeSequence(t *testing.T) {
	got, err := Normalize("\U0001F525")
	if err != nil || got != "fire" {
		t.Fatalf("Normalize(fire emoji) = %q, %v", got, err)
	}
}

func TestNormalize_CustomTag(t *testing.T) {
	got, err := Normalize("woot")
	if err != nil || got != "woot" {
		t.Fatalf("Normalize(woot) = %q, %v", got, err)
	}
}

func TestNormalize_TooLongCustomTag(t *testing.T) {
	if _, err := Normalize("waytoolongtagname"); err == nil {
		t.Fatal("expected error for over-length custom tag")
	}
}

func TestNormalize_RejectsWhitespace(t *testing.T) {
	if _, err := Normalize("a b"); err == nil {
		t.Fatal("expected error for tag containing whitespace")
	}
}

func TestNormalize_RejectsEmpty(t *testing.T) {
	if _, err := Normalize(""); err == nil {
		t.Fatal("expected error for empty tag")
	}
}
