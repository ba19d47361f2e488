package coverage

import (
	"github.com/google/pprof/profile"
)

// FromProfile builds a raw table from the samples of a profile. A line gets
// one hit per sample whose stack contains it. Lines that no sample contains
// are nil, so the table can only tell hit lines apart.
func FromProfile(p *profile.Profile) RawTable {
	counts := map[string]map[int]int{}

	for _, s := range p.Sample {
		seen := map[profileLine]bool{}

		for _, loc := range s.Location {
			for _, l := range loc.Line {
				if l.Function == nil || l.Function.Filename == "" || l.Line < 1 {
					continue
				}

				key := profileLine{l.Function.Filename, int(l.Line)}
				if seen[key] {
					continue
				}

				seen[key] = true

				if counts[key.file] == nil {
					counts[key.file] = map[int]int{}
				}

				counts[key.file][key.line]++
			}
		}
	}

	table := make(RawTable, len(counts))

	for file, lines := range counts {
		table[file] = toHits(lines)
	}

	return table
}

type profileLine struct {
	file string
	line int
}
