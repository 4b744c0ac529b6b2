package domain

import "fmt"

// RootDomainID is the id of the colony root domain. Every colony member holds
// reputation in the root skill, so the user set is derived from it.
const RootDomainID uint64 = 1

// Subdivision is a colony domain (team) tracked by the feed.
type Subdivision struct {
	ID   uint64
	Name string
}

// Subdivisions is the ordered set of configured domains.
type Subdivisions []Subdivision

// DefaultSubdivisions returns the domains observed in production.
func DefaultSubdivisions() Subdivisions {
	return Subdivisions{
		{ID: 1, Name: "General"},
		{ID: 4, Name: "🅿 Intuition"},
		{ID: 3, Name: "🅿 Eco"},
		{ID: 5, Name: "🅿 Jokerace"},
	}
}

// Name returns the display name of id or a fallback label for unknown ids.
func (s Subdivisions) Name(id uint64) string {
	for _, sub := range s {
		if sub.ID == id && sub.Name != "" {
			return sub.Name
		}
	}

	return fmt.Sprintf("Domain %d", id)
}

// IDs returns the configured ids in order.
func (s Subdivisions) IDs() []uint64 {
	ids := make([]uint64, 0, len(s))
	for _, sub := range s {
		ids = append(ids, sub.ID)
	}

	return ids
}

// Contains reports whether id is configured.
func (s Subdivisions) Contains(id uint64) bool {
	for _, sub := range s {
		if sub.ID == id {
			return true
		}
	}

	return false
}
