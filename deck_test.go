/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDeck(t *testing.T) {
	tests := []struct {
		name     string
		deckType string
		custom   []string
		wantType DeckType
		wantVals []string
	}{
		{"empty falls back", "", nil, DeckFibonacci, nil},
		{"unknown falls back", "planets", nil, DeckFibonacci, nil},
		{"standard", "modified_fibonacci", nil, DeckModifiedFibonacci, nil},
		{"t-shirt alias", "t_shirt", nil, DeckTShirt, nil},
		{"custom kept", "custom", []string{"S", "M"}, DeckCustom, []string{"S", "M"}},
		{"custom without values", "custom", nil, DeckFibonacci, nil},
		{"values ignored for standard", "tshirt", []string{"A"}, DeckTShirt, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotVals := normalizeDeck(tt.deckType, tt.custom)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantVals, gotVals)
		})
	}
}

func TestLookupDeck(t *testing.T) {
	d, ok := lookupDeck(DeckModifiedFibonacci)
	require.True(t, ok)
	assert.Contains(t, d.Values, halfCard)
	assert.Contains(t, d.Values, coffeeCard)

	_, ok = lookupDeck(DeckCustom)
	assert.False(t, ok)
}

func TestServeDecks(t *testing.T) {
	cfg := testConfig(t)
	errs := make(chan error, 1)

	mux := httprouter.New()
	mux.GET("/decks", serveDecks(cfg, errs))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var decks []Deck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decks))
	require.Len(t, decks, 3)
	assert.Equal(t, DeckFibonacci, decks[0].Type)
	assert.Empty(t, errs)
}
