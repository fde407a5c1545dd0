// Package reactions folds per-participant reactions into the compact
// summary rendered under a chat message.
package reactions

import (
	"sort"

	"meetpanel/internal/models"
)

// VisibleLimit is how many symbols the message footer shows before folding
// the rest into an overflow counter.
const VisibleLimit = 3

// Entry is one reaction symbol with its voters.
type Entry struct {
	Symbol         string   `json:"symbol"`
	Count          int      `json:"count"`
	ParticipantIDs []string `json:"participant_ids"`
}

// Summary is the display-ready form of a message's reactions.
type Summary struct {
	Entries  []Entry `json:"entries"`
	Total    int     `json:"total"`
	Visible  []Entry `json:"visible"`
	Overflow int     `json:"overflow"`
}

// Summarize orders symbols by descending voter count. Ties keep the order in
// which the symbols were first used.
func Summarize(r *models.Reactions) Summary {
	return SummarizeLimit(r, VisibleLimit)
}

// SummarizeLimit is Summarize with a custom visible cap.
func SummarizeLimit(r *models.Reactions, limit int) Summary {
	var s Summary
	if r == nil {
		return s
	}
	for _, symbol := range r.Symbols() {
		ids := r.Voters(symbol)
		if len(ids) == 0 {
			continue
		}
		s.Entries = append(s.Entries, Entry{Symbol: symbol, Count: len(ids), ParticipantIDs: ids})
		s.Total += len(ids)
	}
	sort.SliceStable(s.Entries, func(i, j int) bool {
		return s.Entries[i].Count > s.Entries[j].Count
	})

	if limit < 0 {
		limit = 0
	}
	visible := min(limit, len(s.Entries))
	s.Visible = s.Entries[:visible:visible]
	for _, e := range s.Entries[visible:] {
		s.Overflow += e.Count
	}
	return s
}
