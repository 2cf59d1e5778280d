package analysis

import "github.com/jengzang/walkaround-go/internal/models"

// HiddenRepeats flags breakpoints that belong to an A,B,A,B oscillation.
// Scanning left to right, when a record's city equals that of its second
// visible predecessor and the first visible predecessor's city equals the
// third's, the record and its first visible predecessor are hidden. Hidden
// records no longer count as predecessors. A record without a city display
// is never hidden.
func HiddenRepeats(records []models.AddressRecord) []bool {
	hidden := make([]bool, len(records))
	if len(records) <= 3 {
		return hidden
	}

	// visiblePredecessors returns up to n indexes of visible records before i, nearest first
	visiblePredecessors := func(i, n int) []int {
		out := make([]int, 0, n)
		for j := i - 1; j >= 0 && len(out) < n; j-- {
			if !hidden[j] {
				out = append(out, j)
			}
		}
		return out
	}

	for i := 3; i < len(records); i++ {
		current, ok := records[i].CityDisplay()
		if !ok {
			continue
		}

		prev := visiblePredecessors(i, 3)
		if len(prev) < 3 {
			continue
		}
		var cities [3]string
		complete := true
		for k, j := range prev {
			city, ok := records[j].CityDisplay()
			if !ok {
				complete = false
				break
			}
			cities[k] = city
		}
		if !complete {
			continue
		}

		if current == cities[1] && cities[0] == cities[2] {
			hidden[i] = true
			hidden[prev[0]] = true
		}
	}
	return hidden
}

// FilterRepeated returns the records left visible by HiddenRepeats, in order
func FilterRepeated(records []models.AddressRecord) []models.AddressRecord {
	hidden := HiddenRepeats(records)
	out := make([]models.AddressRecord, 0, len(records))
	for i, rec := range records {
		if !hidden[i] {
			out = append(out, rec)
		}
	}
	return out
}
