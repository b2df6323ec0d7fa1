package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arenakit/arena/pkg/errors"
)

type rosterFile struct {
	Personalities []Personality `yaml:"personalities"`
}

// LoadRoster reads founding personalities from a YAML file of the form:
//
//	personalities:
//	  - name: The Philosopher
//	    personality: You are a deep thinker...
func LoadRoster(path string) ([]Personality, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidConfig, "failed to read roster file", err).
			WithContext("path", path)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.New(errors.CodeInvalidConfig, "failed to parse roster file", err).
			WithContext("path", path)
	}
	if len(rf.Personalities) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "roster file contains no personalities", nil).
			WithContext("path", path)
	}
	for i, p := range rf.Personalities {
		if p.Name == "" || p.Personality == "" {
			return nil, errors.New(errors.CodeInvalidConfig, "roster entry missing name or personality", nil).
				WithContext("index", i)
		}
	}
	return rf.Personalities, nil
}

// Roster expands or trims personalities to exactly n entries, cycling
// through the list when fewer than n are available. Cycled duplicates get
// a numbered name so ballots stay unambiguous.
func Roster(personalities []Personality, n int) []Personality {
	if len(personalities) == 0 {
		personalities = DefaultRoster()
	}
	out := make([]Personality, 0, n)
	for i := 0; i < n; i++ {
		p := personalities[i%len(personalities)]
		if i >= len(personalities) {
			p.Name = fmt.Sprintf("%s %d", p.Name, i/len(personalities)+1)
		}
		out = append(out, p)
	}
	return out
}
