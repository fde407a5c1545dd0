package models

// PosterDeck describes one presentation asset listed in the posters tab.
type PosterDeck struct {
	ID          string `json:"poster_deck_id"`
	Title       string `json:"poster_deck_title"`
	Owner       string `json:"poster_deck_owner"`
	Description string `json:"poster_deck_description"`
	Image       string `json:"poster_deck_image"`
	Link        string `json:"poster_deck_link,omitempty"`
}

// DeckLink returns the full-deck link, falling back to the event page.
func (p PosterDeck) DeckLink() string {
	if p.Link != "" {
		return p.Link
	}
	return "/event/poster/" + p.ID
}
