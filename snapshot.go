/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"maps"
	"slices"
)

// PlayerView is the public roster entry. Vote values never appear here.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsSpectator bool   `json:"isSpectator"`
	HasVoted    bool   `json:"hasVoted"`
}

type RoundView struct {
	Status  RoundStatus       `json:"status"`
	Votes   map[string]string `json:"votes"`
	Results *Results          `json:"results"`
}

// Snapshot is the full room state sent to clients.
type Snapshot struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ModeratorID      *string      `json:"moderatorId"`
	Players          []PlayerView `json:"players"`
	CurrentRound     RoundView    `json:"currentRound"`
	DeckType         DeckType     `json:"deckType"`
	CustomDeckValues []string     `json:"customDeckValues"`
	Settings         Settings     `json:"settings"`
}

func newPlayerView(p *Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		IsSpectator: p.IsSpectator,
		HasVoted:    p.HasVoted,
	}
}

// newRoundView hides votes and results until the round is revealed.
func newRoundView(r *Round) RoundView {
	if r.Status != StatusRevealed {
		return RoundView{Status: r.Status, Votes: map[string]string{}}
	}

	return RoundView{
		Status:  r.Status,
		Votes:   maps.Clone(r.Votes),
		Results: cloneResults(r.Results),
	}
}

func cloneResults(res *Results) *Results {
	if res == nil {
		return nil
	}

	out := &Results{
		Distribution: maps.Clone(res.Distribution),
		Majority:     slices.Clone(res.Majority),
		VoteCount:    res.VoteCount,
	}
	if res.Average != nil {
		avg := *res.Average
		out.Average = &avg
	}

	return out
}

// newSnapshot copies everything it exposes, so the result can be handed to
// other goroutines while the room keeps changing.
func newSnapshot(r *Room) Snapshot {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, newPlayerView(p))
	}

	var moderator *string
	if r.ModeratorID != "" {
		id := r.ModeratorID
		moderator = &id
	}

	return Snapshot{
		ID:               r.ID,
		Name:             r.Name,
		ModeratorID:      moderator,
		Players:          players,
		CurrentRound:     newRoundView(r.Round),
		DeckType:         r.DeckType,
		CustomDeckValues: slices.Clone(r.CustomDeckValues),
		Settings:         maps.Clone(r.Settings),
	}
}
