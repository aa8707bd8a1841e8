package conversation

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed scripts.yaml
var embeddedScripts []byte

// RatingQuestion carries the companion self-rating used for the emergency check.
const RatingQuestion = "How are you feeling today? (1-10)?"

// Scripts maps each topic to its ordered intake questions.
type Scripts map[Topic][]string

// Questions returns a copy of the topic's script.
func (s Scripts) Questions(t Topic) []string {
	return slices.Clone(s[t])
}

func (s Scripts) Len(t Topic) int {
	return len(s[t])
}

func LoadScripts(r io.Reader) (Scripts, error) {
	var raw map[string][]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode question scripts: %w", err)
	}

	scripts := make(Scripts, len(raw))
	for name, questions := range raw {
		topic, err := ParseTopic(name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(questions))
		for _, q := range questions {
			if q == "" || seen[q] {
				return nil, fmt.Errorf("script %s: empty or duplicate question %q", topic, q)
			}
			seen[q] = true
		}
		scripts[topic] = questions
	}

	for _, t := range Topics {
		if _, ok := scripts[t]; !ok {
			return nil, fmt.Errorf("script %s: missing", t)
		}
	}
	return scripts, nil
}

var defaultScripts = sync.OnceValue(func() Scripts {
	scripts, err := LoadScripts(bytes.NewReader(embeddedScripts))
	if err != nil {
		panic(err)
	}
	return scripts
})

// DefaultScripts returns the scripts compiled into the binary.
func DefaultScripts() Scripts {
	return defaultScripts()
}
