package model

// Grant describes what a product adds to a user's game state.
type Grant struct {
	Gems        int64    `json:"gems,omitempty" yaml:"gems"`
	UnlockCards []string `json:"unlock_cards,omitempty" yaml:"unlock_cards"`
	UnlockDecks []string `json:"unlock_decks,omitempty" yaml:"unlock_decks"`
	Premium     bool     `json:"premium,omitempty" yaml:"premium"`
}

// Product is an entry of the in‑app purchase catalog.
type Product struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Price       string `json:"price,omitempty" yaml:"price"`
	Grant       Grant  `json:"grant" yaml:"grant"`
}
