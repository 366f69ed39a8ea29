package qualitygate

import "testing"

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name     string
		sentence string
		accepted bool
	}{
		{"accepted simple sentence", "Le chat mange la souris.", true},
		{"too short", "Le chat.", false},
		{"too long", "Le petit chat noir mange rapidement la souris grise dans le jardin.", false},
		{"no capital", "le chat mange la souris.", false},
		{"no terminal punctuation", "Le chat mange la souris", false},
		{"guillemet open quote", "« Le chat mange la souris. »", true},
		{"leading conjunction fragment", "Et le chat mange la souris.", false},
		{"bare gerund fragment", "Marchant dans la rue sombre.", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accepted, reason := Validate(tc.sentence, cfg)
			if accepted != tc.accepted {
				t.Errorf("Validate(%q) accepted=%v reason=%q, want accepted=%v", tc.sentence, accepted, reason, tc.accepted)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	sentences := []string{
		"Le chat mange la souris.",
		"trop court.",
		"Elle regarde la télévision.",
	}
	kept, rejected := ValidateBatch(sentences, DefaultConfig())
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept sentences, got %d: %v", len(kept), kept)
	}
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejected sentence, got %d", len(rejected))
	}
}

func TestValidateNoPOSTaggerNeverRejectsOnVerb(t *testing.T) {
	cfg := DefaultConfig() // HasPOSTagger is nil
	accepted, reason := Validate("Quelque chose étrange arrive.", cfg)
	if !accepted {
		t.Errorf("expected acceptance without a POS tagger, got reason=%q", reason)
	}
}
