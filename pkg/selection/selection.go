// Package selection loads the participant allow-list that scopes both
// reconciliation and document downloads.
package selection

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Set is an immutable allow-list of participant numbers.
type Set struct {
	ids map[string]struct{}
}

// Load reads a line-oriented allow-list file. Blank lines and lines starting
// with '#' are ignored. A missing file is a configuration error.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open selection file: %w", err)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read selection file: %w", err)
	}

	return &Set{ids: ids}, nil
}

// FromIDs builds a set from explicit identifiers. Used by tests and the
// convert command.
func FromIDs(ids ...string) *Set {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		m[id] = struct{}{}
	}
	return &Set{ids: m}
}

// Contains reports whether the participant number is in scope.
func (s *Set) Contains(noPeserta string) bool {
	_, ok := s.ids[noPeserta]
	return ok
}

// Len returns the number of identifiers in the set.
func (s *Set) Len() int {
	return len(s.ids)
}

// Missing returns the identifiers in the set that are absent from seen,
// sorted for deterministic iteration order.
func (s *Set) Missing(seen map[string]struct{}) []string {
	missing := make([]string, 0)
	for id := range s.ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
