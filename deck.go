/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/julienschmidt/httprouter"
)

type DeckType string

const (
	DeckFibonacci         DeckType = "fibonacci"
	DeckModifiedFibonacci DeckType = "modified_fibonacci"
	DeckTShirt            DeckType = "tshirt"
	DeckCustom            DeckType = "custom"
)

const (
	halfCard   = "½"
	coffeeCard = "☕"
)

type Deck struct {
	Type   DeckType `json:"type"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

var deckCatalogue = []Deck{
	{
		Type:   DeckFibonacci,
		Name:   "Fibonacci",
		Values: []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", coffeeCard},
	},
	{
		Type:   DeckModifiedFibonacci,
		Name:   "Modified Fibonacci",
		Values: []string{"0", halfCard, "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", coffeeCard},
	},
	{
		Type:   DeckTShirt,
		Name:   "T-Shirt Sizes",
		Values: []string{"XS", "S", "M", "L", "XL", "XXL", "?", coffeeCard},
	},
}

// lookupDeck returns the standard deck of the given type.
func lookupDeck(t DeckType) (Deck, bool) {
	for _, d := range deckCatalogue {
		if d.Type == t {
			return d, true
		}
	}
	return Deck{}, false
}

// normalizeDeck resolves a client supplied deck choice. Unknown types, and
// custom decks without any values, fall back to fibonacci.
func normalizeDeck(deckType string, custom []string) (DeckType, []string) {
	t := DeckType(deckType)
	if t == "t_shirt" {
		t = DeckTShirt
	}

	if t == DeckCustom {
		if len(custom) > 0 {
			return DeckCustom, slices.Clone(custom)
		}
		return DeckFibonacci, nil
	}

	if _, ok := lookupDeck(t); !ok {
		return DeckFibonacci, nil
	}
	return t, nil
}

func serveDecks(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(deckCatalogue); err != nil {
			errs <- err
		}
	}
}
