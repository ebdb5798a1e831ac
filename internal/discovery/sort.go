package discovery

import (
	"slices"
	"strings"

	"github.com/maruel/natural"

	"slideview/internal/natsort"
)

// SortMethod identifies a SortStrategy in the settings file.
type SortMethod int

const (
	SortNatural SortMethod = iota
	SortSimple
	SortEntryOrder
)

func (m SortMethod) String() string {
	return GetSortStrategy(m).Name()
}

// ParseSortMethod maps a settings value to a SortMethod. Unknown values give
// SortNatural and false.
func ParseSortMethod(s string) (SortMethod, bool) {
	for _, st := range AllSortStrategies() {
		if strings.EqualFold(st.Name(), strings.TrimSpace(s)) {
			return st.ID(), true
		}
	}
	return SortNatural, false
}

// SortStrategy orders the paths found in one directory or archive.
type SortStrategy interface {
	// Sort returns a new sorted slice without modifying the original.
	Sort(paths []string) []string
	Name() string
	ID() SortMethod
}

// NaturalSortStrategy orders numeric runs by value, so "img2" comes before
// "img10".
type NaturalSortStrategy struct{}

func (s *NaturalSortStrategy) Sort(paths []string) []string {
	result := slices.Clone(paths)
	slices.SortStableFunc(result, compareNatural)
	return result
}

func (s *NaturalSortStrategy) Name() string   { return "natural" }
func (s *NaturalSortStrategy) ID() SortMethod { return SortNatural }

// compareNatural breaks natsort ties ("a01" and "a1", or differing case) so
// the order does not depend on the directory listing.
func compareNatural(a, b string) int {
	if c := natsort.Compare(a, b); c != 0 {
		return c
	}
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return strings.Compare(a, b)
}

// SimpleSortStrategy orders by bytes.
type SimpleSortStrategy struct{}

func (s *SimpleSortStrategy) Sort(paths []string) []string {
	result := slices.Clone(paths)
	slices.Sort(result)
	return result
}

func (s *SimpleSortStrategy) Name() string   { return "simple" }
func (s *SimpleSortStrategy) ID() SortMethod { return SortSimple }

// EntryOrderSortStrategy keeps the directory listing or archive order.
type EntryOrderSortStrategy struct{}

func (s *EntryOrderSortStrategy) Sort(paths []string) []string {
	return slices.Clone(paths)
}

func (s *EntryOrderSortStrategy) Name() string   { return "entry" }
func (s *EntryOrderSortStrategy) ID() SortMethod { return SortEntryOrder }

// GetSortStrategy returns the strategy for m, falling back to natural.
func GetSortStrategy(m SortMethod) SortStrategy {
	switch m {
	case SortSimple:
		return &SimpleSortStrategy{}
	case SortEntryOrder:
		return &EntryOrderSortStrategy{}
	default:
		return &NaturalSortStrategy{}
	}
}

func AllSortStrategies() []SortStrategy {
	return []SortStrategy{
		&NaturalSortStrategy{},
		&SimpleSortStrategy{},
		&EntryOrderSortStrategy{},
	}
}
