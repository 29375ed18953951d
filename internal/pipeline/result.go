package pipeline

import "fmt"

// Outcome classifies what happened to one image URL.
type Outcome int

const (
	// OutcomeSaved means the image was written to disk.
	OutcomeSaved Outcome = iota + 1
	// OutcomeFiltered means the image was below the minimum size.
	OutcomeFiltered
	// OutcomeFailed means fetching, decoding, resizing or writing failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes one processed URL. Width and Height are the output
// dimensions for saved images and the source dimensions for filtered ones.
type Result struct {
	Index   int
	URL     string
	Outcome Outcome
	Path    string
	Width   int
	Height  int
	Err     error
}

// Summary accumulates the results of one ProcessAndSave call.
type Summary struct {
	Total   int
	Saved   int
	Results []Result
}

// Count returns the number of results with outcome o.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Paths returns the written files in save order.
func (s Summary) Paths() []string {
	var paths []string
	for _, r := range s.Results {
		if r.Outcome == OutcomeSaved {
			paths = append(paths, r.Path)
		}
	}
	return paths
}
