package conversation

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultScripts(t *testing.T) {
	scripts := DefaultScripts()

	if scripts.Len(TopicHealthAnalysis) == 0 || scripts.Len(TopicFriendlyCompanion) == 0 {
		t.Fatal("intake topics must have questions")
	}
	if scripts.Len(TopicEmergencySupport) != 0 {
		t.Error("emergency support must not have an intake")
	}
	if scripts.Questions(TopicFriendlyCompanion)[0] != RatingQuestion {
		t.Error("companion intake should open with the self-rating question")
	}
	for _, q := range []string{weightQuestion, heightQuestion, bloodPressureQuestion, heartRateQuestion} {
		found := false
		for _, s := range scripts.Questions(TopicHealthAnalysis) {
			found = found || s == q
		}
		if !found {
			t.Errorf("health intake is missing %q", q)
		}
	}

	// Questions hands out a copy.
	scripts.Questions(TopicHealthAnalysis)[0] = "changed"
	if DefaultScripts().Questions(TopicHealthAnalysis)[0] == "changed" {
		t.Error("Questions exposed the underlying script")
	}
}

func TestLoadScriptsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown topic": "healthAnalysis: [a]\nfriendlyCompanion: [b]\nemergencySupport: []\nsmallTalk: [c]\n",
		"duplicate":     "healthAnalysis: [a, a]\nfriendlyCompanion: [b]\nemergencySupport: []\n",
		"missing topic": "healthAnalysis: [a]\nfriendlyCompanion: [b]\n",
		"not yaml":      "healthAnalysis: [a\n",
	}
	for name, doc := range cases {
		if _, err := LoadScripts(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	_, err := LoadScripts(strings.NewReader("healthAnalysis: []\nfriendlyCompanion: []\nemergencySupport: []\nother: []\n"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown topic should wrap ErrInvalidInput, got %v", err)
	}
}
