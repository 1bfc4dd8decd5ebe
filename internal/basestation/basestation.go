package basestation

import (
	"sort"
	"strings"
)

// Basestation is one discovered base station. The ID is the transport's
// stable device identifier for this session; Name is the advertised local
// name and may be empty.
type Basestation struct {
	ID    string
	Name  string
	State State
}

// sortStations orders stations case-insensitively by name. Unnamed
// stations sort after all named ones, then by ID, so the order is
// deterministic either way.
func sortStations(list []Basestation) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Name == "" || b.Name == "" {
			if a.Name == b.Name {
				return a.ID < b.ID
			}
			return b.Name == ""
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an == bn {
			return a.ID < b.ID
		}
		return an < bn
	})
}
