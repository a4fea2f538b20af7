package textproc

import (
	"reflect"
	"testing"
)

func TestContentTokensDropsStopWords(t *testing.T) {
	got := ContentTokens("What was Acme's revenue in 2024?")
	want := []string{"acme", "revenue", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ContentTokens() = %v, want %v", got, want)
	}
}

func TestWordSetSplitsOnWhitespaceOnly(t *testing.T) {
	set := WordSet("Revenue grew. revenue GREW")
	if len(set) != 3 {
		t.Fatalf("expected 3 distinct tokens, got %v", set)
	}
	if _, ok := set["grew."]; !ok {
		t.Fatalf("expected punctuation to stay attached: %v", set)
	}
}

func TestEntitiesKeepsCapitalizedTerms(t *testing.T) {
	got := Entities("The Acme Corp board met Globex. Acme agreed; What next?", 0)
	want := []string{"Acme", "Corp", "Globex"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Entities() = %v, want %v", got, want)
	}
	if got := Entities("Acme Corp Globex", 2); len(got) != 2 {
		t.Fatalf("expected limit to apply, got %v", got)
	}
}
