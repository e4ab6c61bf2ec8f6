package models

import (
	"math"
	"sort"
)

// Item is one procurement line read from the tender workbook. Position is the
// 1-based sequence number matching the workbook's own numbering column.
type Item struct {
	Raw      string
	Name     string
	Position int
}

// Candidate is one search-result entry considered as a possible match for a
// queried item. DetailURL is normalized (query string stripped); candidates for
// one item form a set keyed by that URL.
type Candidate struct {
	Title     string
	DetailURL string
	Relevance int
}

// PriceQuote is extracted from one candidate's detail page. Amount is +Inf when
// the price is absent or unparsable, never zero: zero would out-rank real
// prices in min-selection.
type PriceQuote struct {
	Amount          float64
	Display         string
	BusinessDisplay string
	SourceURL       string
}

func (q PriceQuote) Found() bool {
	return q.Display != ""
}

func (q PriceQuote) Finite() bool {
	return !math.IsInf(q.Amount, 1) && !math.IsNaN(q.Amount)
}

// OfferResult is the final answer per item. The zero value means no offer was
// obtainable.
type OfferResult struct {
	Price         string
	BusinessPrice string
	Link          string
}

func (r OfferResult) Found() bool {
	return r.Price != ""
}

// ResultTable holds OfferResults indexed by item position. It is mutated only
// by the sequential run coordinator.
type ResultTable map[int]OfferResult

func (t ResultTable) Set(position int, res OfferResult) {
	t[position] = res
}

func (t ResultTable) Get(position int) OfferResult {
	return t[position]
}

// Positions returns the recorded positions in ascending order.
func (t ResultTable) Positions() []int {
	out := make([]int, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// FoundCount reports how many items ended up with a price.
func (t ResultTable) FoundCount() int {
	n := 0
	for _, r := range t {
		if r.Found() {
			n++
		}
	}
	return n
}

// Snapshot returns a copy safe to hand to a checkpoint writer.
func (t ResultTable) Snapshot() ResultTable {
	out := make(ResultTable, len(t))
	for p, r := range t {
		out[p] = r
	}
	return out
}
