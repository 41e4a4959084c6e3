// Package mention parses @First Last references out of note text and
// resolves them against the user directory.
package mention

import (
	"regexp"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// mentionPattern matches an @ followed by two consecutive alphabetic words,
// e.g. "@Jane Doe". Single-word handles and punctuation-separated pairs do
// not match.
var mentionPattern = regexp.MustCompile(`@([A-Za-z]+) ([A-Za-z]+)`)

// Candidate is one parsed token before directory resolution.
type Candidate struct {
	First string
	Last  string
}

// Parse extracts mention candidates from text in order of appearance.
func Parse(text string) []Candidate {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, Candidate{First: m[1], Last: m[2]})
	}
	return out
}

// Resolve parses text and resolves each candidate against the directory by
// case-insensitive (first, last) name match. Candidates that do not resolve
// to exactly one user are silently dropped. The result is deduplicated by
// user id, preserving first-mention order.
func Resolve(text string, directory []model.DirectoryUser) []model.DirectoryUser {
	var out []model.DirectoryUser
	seen := make(map[string]bool)

	for _, c := range Parse(text) {
		var match *model.DirectoryUser
		ambiguous := false
		for i := range directory {
			u := &directory[i]
			if strings.EqualFold(u.FirstName, c.First) && strings.EqualFold(u.LastName, c.Last) {
				if match != nil {
					ambiguous = true
					break
				}
				match = u
			}
		}
		if match == nil || ambiguous || seen[match.ID] {
			continue
		}
		seen[match.ID] = true
		out = append(out, *match)
	}
	return out
}
