package flight

import "sort"

// Result is the outcome of one airport or aircraft lookup.
type Result struct {
	Flights []Record
	Errors  []string
	Sources []string
}

// Response is the JSON envelope returned for a flights query.
type Response struct {
	Error  []string `json:"error"`
	Total  int      `json:"total"`
	Source []string `json:"source"`
	Data   []Record `json:"data"`
}

// Aggregate concatenates lookup results and sorts the flights most recent
// first. The returned slices are never nil.
func Aggregate(results ...Result) Response {
	resp := Response{
		Error:  []string{},
		Source: []string{},
		Data:   []Record{},
	}

	for _, r := range results {
		resp.Error = append(resp.Error, r.Errors...)
		resp.Source = append(resp.Source, r.Sources...)
		resp.Data = append(resp.Data, r.Flights...)
	}

	SortByRecency(resp.Data)
	resp.Total = len(resp.Data)
	return resp
}

// SortByRecency sorts records by date followed by departure text, descending.
// The comparison is lexicographic and ignores UTC offsets.
func SortByRecency(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].sortKey() > records[j].sortKey()
	})
}
