// Public domain.

// Package colors supplies color offsets, magnitude in a filter minus V
// magnitude, for object spectral energy distributions.
package colors

import (
	"fmt"
	"os"
	"sort"

	"github.com/naoina/toml"
)

// Table maps sed name to filter name to m(filter) - V.
type Table map[string]map[string]float64

// Builtin returns offsets for the C and S type seds in the LSST filters.
func Builtin() Table {
	return Table{
		"C.dat": {"u": 1.53, "g": .28, "r": -.18, "i": -.29, "z": -.30, "y": -.30},
		"S.dat": {"u": 1.83, "g": .39, "r": -.21, "i": -.33, "z": -.29, "y": -.31},
	}
}

// file is the layout of a color file:
//
//	[colors."C.dat"]
//	u = 1.53
//	g = 0.28
type file struct {
	Colors Table
}

// ReadFile reads a TOML color file and merges its entries over Builtin.
func ReadFile(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse parses TOML color data and merges its entries over Builtin.
func Parse(data []byte) (Table, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	t := Builtin()
	for sed, fm := range f.Colors {
		if t[sed] == nil {
			t[sed] = map[string]float64{}
		}
		for filter, v := range fm {
			t[sed][filter] = v
		}
	}
	return t, nil
}

// Setup extracts the offsets for every combination of seds and filters,
// failing if any is missing.
func (t Table) Setup(seds, filters []string) (Table, error) {
	s := Table{}
	var missing []string
	for _, sed := range seds {
		fm, ok := t[sed]
		if !ok {
			missing = append(missing, sed)
			continue
		}
		s[sed] = map[string]float64{}
		for _, f := range filters {
			v, ok := fm[f]
			if !ok {
				missing = append(missing, sed+"/"+f)
				continue
			}
			s[sed][f] = v
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no color offsets for %v", missing)
	}
	return s, nil
}

// Offset returns m(filter) - V.  Missing entries are zero.
func (t Table) Offset(sed, filter string) float64 {
	return t[sed][filter]
}
