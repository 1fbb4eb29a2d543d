/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

const (
	settingAutoReveal  = "autoReveal"
	settingShowAverage = "showAverage"
)

// Settings is an open bag of room options. Keys other than the documented
// ones are stored and echoed back untouched.
type Settings map[string]any

func defaultSettings() Settings {
	return Settings{
		settingAutoReveal:  true,
		settingShowAverage: true,
	}
}

func mergeSettings(overrides map[string]any) Settings {
	s := defaultSettings()
	maps.Copy(s, overrides)
	return s
}

func (s Settings) enabled(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	default:
		return false
	}
}

// Room is one estimation session. It is not safe for concurrent use; the
// Registry serializes every call.
type Room struct {
	ID               string
	Name             string
	DeckType         DeckType
	CustomDeckValues []string
	Settings         Settings
	ModeratorID      string
	Players          []*Player
	Round            *Round

	createdAt  time.Time
	lastActive time.Time
}

func newRoom(id, name string, moderator *Player, deckType string, customDeck []string, settings map[string]any, now time.Time) *Room {
	if name == "" {
		name = fmt.Sprintf("Room #%s", shortID(id))
	}

	dt, values := normalizeDeck(deckType, customDeck)

	r := &Room{
		ID:               id,
		Name:             name,
		DeckType:         dt,
		CustomDeckValues: values,
		Settings:         mergeSettings(settings),
		ModeratorID:      moderator.ID,
		Round:            newRound(),
		createdAt:        now,
		lastActive:       now,
	}
	r.addPlayer(moderator)

	return r
}

func shortID(id string) string {
	if len(id) < 4 {
		return id
	}
	return id[:4]
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// addPlayer appends p, or refreshes the existing entry with the same id.
func (r *Room) addPlayer(p *Player) *Player {
	if existing := r.player(p.ID); existing != nil {
		existing.IsConnected = true
		if p.Name != "" {
			existing.Name = p.Name
		}
		return existing
	}

	r.Players = append(r.Players, p)

	return p
}

// removePlayer drops a player and their vote. When the moderator leaves, a
// successor is promoted; promoted is false if nobody eligible remained.
func (r *Room) removePlayer(id string) (removed *Player, wasModerator, promoted bool) {
	i := slices.IndexFunc(r.Players, func(p *Player) bool { return p.ID == id })
	if i < 0 {
		return nil, false, false
	}

	removed = r.Players[i]
	r.Players = slices.Delete(r.Players, i, i+1)
	r.Round.purge(id)

	if r.ModeratorID != id {
		return removed, false, false
	}

	return removed, true, r.promoteNewModerator(id)
}

// promoteNewModerator hands moderation to the first non-spectator in roster
// order, other than departing. With no candidate the room is left without a
// moderator.
func (r *Room) promoteNewModerator(departing string) bool {
	for _, p := range r.Players {
		if !p.IsSpectator && p.ID != departing {
			r.ModeratorID = p.ID
			return true
		}
	}

	r.ModeratorID = ""

	return false
}

// authorize checks moderator rights without changing the room. In a room
// without a moderator any non-spectator passes, and claim is set so the
// caller can seat them once the action itself has succeeded.
func (r *Room) authorize(playerID string) (claim bool, err error) {
	if r.ModeratorID == "" {
		if p := r.player(playerID); p != nil && !p.IsSpectator {
			return true, nil
		}
	}
	if playerID == "" || r.ModeratorID != playerID {
		return false, ErrNotModerator
	}
	return false, nil
}

func (r *Room) seat(playerID string, claim bool) {
	if claim {
		r.ModeratorID = playerID
	}
}

func (r *Room) startNewRound() {
	r.Round.restart()
	for _, p := range r.Players {
		p.resetVote()
	}
}

func (r *Room) startRound(playerID string) error {
	claim, err := r.authorize(playerID)
	if err != nil {
		return err
	}
	if r.Round.Status != StatusWaiting {
		return fmt.Errorf("start round while %s: %w", r.Round.Status, ErrInvalidRoundState)
	}

	r.seat(playerID, claim)
	r.startNewRound()

	return nil
}

// resetRound restarts the cycle from any status, discarding in-flight votes.
func (r *Room) resetRound(playerID string) error {
	claim, err := r.authorize(playerID)
	if err != nil {
		return err
	}

	r.seat(playerID, claim)
	r.startNewRound()

	return nil
}

// submitVote records a vote and, with autoReveal on, reveals as soon as every
// eligible player has voted. revealed reports whether that happened.
func (r *Room) submitVote(playerID, value string) (revealed bool, err error) {
	if r.Round.Status != StatusVoting {
		return false, fmt.Errorf("vote while %s: %w", r.Round.Status, ErrInvalidRoundState)
	}

	p := r.player(playerID)
	if p == nil || p.IsSpectator {
		return false, ErrIneligibleVoter
	}

	r.Round.record(playerID, value)
	p.setVoted()

	if r.Settings.enabled(settingAutoReveal) && r.quorum() {
		return r.Round.reveal(), nil
	}

	return false, nil
}

func (r *Room) revealVotes(playerID string) error {
	claim, err := r.authorize(playerID)
	if err != nil {
		return err
	}
	if !r.Round.reveal() {
		return fmt.Errorf("reveal while %s: %w", r.Round.Status, ErrInvalidRoundState)
	}

	r.seat(playerID, claim)

	return nil
}

// quorum holds when at least one eligible voter exists and all of them voted.
func (r *Room) quorum() bool {
	voters := 0
	for _, p := range r.Players {
		if !p.canVote() {
			continue
		}
		if !p.HasVoted {
			return false
		}
		voters++
	}

	return voters > 0
}

func (r *Room) touch(now time.Time) {
	r.lastActive = now
}
