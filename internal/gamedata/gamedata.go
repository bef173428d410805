// Package gamedata knows the few fields of the client owned save
// document that the server touches: the starter document handed out at
// first login and the fields a purchase grant edits.  Everything else in
// the document is preserved byte for byte.
package gamedata

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/iliyamo/cardgame-backend/internal/model"
)

var (
	// ErrNotObject is returned when a payload is not a JSON object.
	ErrNotObject = errors.New("game data must be a JSON object")
	// ErrDuplicateKey is returned when a payload repeats a top-level key.
	ErrDuplicateKey = errors.New("game data repeats a top-level key")
)

type deck struct {
	Name     string   `json:"name"`
	Cards    []string `json:"cards"`
	IsLocked bool     `json:"is_locked"`
}

type starter struct {
	Gems          int64           `json:"gems"`
	UnlockedCards []string        `json:"unlocked_cards"`
	PremiumUser   bool            `json:"premium_user"`
	TotalWins     int             `json:"total_wins"`
	TotalLosses   int             `json:"total_losses"`
	AIWins        map[string]int  `json:"ai_wins"`
	Decks         map[string]deck `json:"decks"`
}

// Defaults returns the document a new user starts with.
func Defaults(starterGems int64) json.RawMessage {
	doc := starter{
		Gems:          starterGems,
		UnlockedCards: []string{"ExtraPass", "ExtraMove"},
		AIWins:        map[string]int{"easy": 0, "normal": 0, "challenging": 0, "hard": 0},
		Decks: map[string]deck{
			"deck1": {Name: "Deck 1", Cards: []string{}, IsLocked: false},
			"deck2": {Name: "Deck 2", Cards: []string{}, IsLocked: true},
			"deck3": {Name: "Deck 3", Cards: []string{}, IsLocked: true},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		// static document, cannot fail
		panic(err)
	}
	return b
}

// ValidateObject returns ErrNotObject unless payload is a JSON object,
// and ErrDuplicateKey when a top-level key appears twice.  Path edits
// act on the first occurrence while decoders keep the last one, so such
// documents are refused.
func ValidateObject(payload []byte) error {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return ErrNotObject
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return ErrNotObject
	}
	seen := make(map[string]struct{})
	var dup *string
	doc.ForEach(func(k, _ gjson.Result) bool {
		if _, ok := seen[k.Str]; ok {
			dup = &k.Str
			return false
		}
		seen[k.Str] = struct{}{}
		return true
	})
	if dup != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, *dup)
	}
	return nil
}

// Apply returns a copy of payload with grant applied.  Gems are added,
// cards are appended once, listed decks are unlocked and premium is
// switched on.  Unknown fields are left untouched.
func Apply(payload json.RawMessage, grant model.Grant) (json.RawMessage, error) {
	if err := ValidateObject(payload); err != nil {
		return nil, err
	}
	out := append([]byte(nil), payload...)
	var err error

	if grant.Gems != 0 {
		gems := gjson.GetBytes(out, "gems").Int()
		if out, err = sjson.SetBytes(out, "gems", gems+grant.Gems); err != nil {
			return nil, fmt.Errorf("grant gems: %w", err)
		}
	}
	for _, card := range grant.UnlockCards {
		if out, err = unlockCard(out, card); err != nil {
			return nil, fmt.Errorf("grant card %s: %w", card, err)
		}
	}
	for _, id := range grant.UnlockDecks {
		if out, err = unlockDeck(out, id); err != nil {
			return nil, fmt.Errorf("grant deck %s: %w", id, err)
		}
	}
	if grant.Premium {
		if out, err = sjson.SetBytes(out, "premium_user", true); err != nil {
			return nil, fmt.Errorf("grant premium: %w", err)
		}
	}
	return out, nil
}

// Gems reads the gem balance of a payload.
func Gems(payload []byte) int64 {
	return gjson.GetBytes(payload, "gems").Int()
}

func unlockCard(doc []byte, card string) ([]byte, error) {
	cards := gjson.GetBytes(doc, "unlocked_cards")
	if !cards.IsArray() {
		return sjson.SetBytes(doc, "unlocked_cards", []string{card})
	}
	for _, c := range cards.Array() {
		if c.String() == card {
			return doc, nil
		}
	}
	return sjson.SetBytes(doc, "unlocked_cards.-1", card)
}

// unlockDeck clears decks.<id>.is_locked, replacing a decks value or a
// deck entry that is not an object.
func unlockDeck(doc []byte, id string) ([]byte, error) {
	if !gjson.GetBytes(doc, "decks").IsObject() {
		return sjson.SetBytes(doc, "decks", map[string]any{id: map[string]bool{"is_locked": false}})
	}
	path := "decks." + gjson.Escape(id)
	if !gjson.GetBytes(doc, path).IsObject() {
		return sjson.SetBytes(doc, path, map[string]bool{"is_locked": false})
	}
	return sjson.SetBytes(doc, path+".is_locked", false)
}
