/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultModeratorLabel = "Moderator_"
	defaultPlayerLabel    = "Player_"
)

// RoomOptions carries the optional fields of a create_room request.
type RoomOptions struct {
	RoomName         string
	PlayerName       string
	DeckType         string
	CustomDeckValues []string
	Settings         map[string]any
}

// Departure describes what happened when a player left a room.
type Departure struct {
	RoomID         string
	PlayerID       string
	Removed        bool
	NewModeratorID string
	Closed         bool
	Snapshot       Snapshot
}

// VoteOutcome is the result of an accepted vote.
type VoteOutcome struct {
	Snapshot Snapshot
	Revealed bool
	Votes    map[string]string
}

// Registry owns every live room in the process. All methods are safe for
// concurrent use; each call holds the registry lock for its whole duration,
// so no two operations ever interleave on the same room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	now   func() time.Time
	newID func() string
}

func newRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

func (reg *Registry) lookup(roomID string) (*Room, error) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%q: %w", roomID, ErrRoomNotFound)
	}
	return room, nil
}

// CreateRoom opens a room with playerID as its moderator and only player.
func (reg *Registry) CreateRoom(playerID string, opts RoomOptions) (string, Snapshot) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var id string
	for {
		id = reg.newID()
		if _, exists := reg.rooms[id]; !exists {
			break
		}
	}

	name := opts.PlayerName
	if name == "" {
		name = defaultModeratorLabel + shortID(id)
	}

	room := newRoom(id, opts.RoomName, newPlayer(playerID, name, false),
		opts.DeckType, opts.CustomDeckValues, opts.Settings, reg.now())
	reg.rooms[id] = room

	return id, newSnapshot(room)
}

// JoinRoom adds the player to the room, or refreshes their entry if the id is
// already on the roster.
func (reg *Registry) JoinRoom(roomID, playerID, name string, spectator bool) (PlayerView, Snapshot, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, err := reg.lookup(roomID)
	if err != nil {
		return PlayerView{}, Snapshot{}, err
	}

	if name == "" && room.player(playerID) == nil {
		name = defaultPlayerLabel + shortID(playerID)
	}

	p := room.addPlayer(newPlayer(playerID, name, spectator))
	room.touch(reg.now())

	return newPlayerView(p), newSnapshot(room), nil
}

// LeaveRoom removes the player from the named room. Naming a room the player
// is not in is an error and leaves the room untouched.
func (reg *Registry) LeaveRoom(roomID, playerID string) (Departure, error) {
	if roomID == "" || playerID == "" {
		return Departure{}, ErrMissingIdentity
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, err := reg.lookup(roomID)
	if err != nil {
		return Departure{}, err
	}
	if room.player(playerID) == nil {
		return Departure{}, fmt.Errorf("%q in %q: %w", playerID, roomID, ErrNotInRoom)
	}

	return reg.depart(room, playerID), nil
}

// Disconnect removes the player from whichever room holds them. The room is
// found by scanning, not trusted from the client.
func (reg *Registry) Disconnect(playerID string) (Departure, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		if room.player(playerID) != nil {
			return reg.depart(room, playerID), true
		}
	}

	return Departure{}, false
}

// depart removes the player and deletes the room once it is empty. Caller
// holds reg.mu.
func (reg *Registry) depart(room *Room, playerID string) Departure {
	removed, wasModerator, _ := room.removePlayer(playerID)

	d := Departure{
		RoomID:   room.ID,
		PlayerID: playerID,
		Removed:  removed != nil,
	}

	if wasModerator {
		d.NewModeratorID = room.ModeratorID
	}

	if len(room.Players) == 0 {
		delete(reg.rooms, room.ID)
		d.Closed = true
		return d
	}

	room.touch(reg.now())
	d.Snapshot = newSnapshot(room)

	return d
}

func (reg *Registry) StartRound(roomID, playerID string) (Snapshot, error) {
	return reg.mutate(roomID, func(room *Room) error {
		return room.startRound(playerID)
	})
}

func (reg *Registry) ResetRound(roomID, playerID string) (Snapshot, error) {
	return reg.mutate(roomID, func(room *Room) error {
		return room.resetRound(playerID)
	})
}

// RevealVotes forces a reveal and returns the revealed votes.
func (reg *Registry) RevealVotes(roomID, playerID string) (Snapshot, map[string]string, error) {
	var votes map[string]string

	snap, err := reg.mutate(roomID, func(room *Room) error {
		if err := room.revealVotes(playerID); err != nil {
			return err
		}
		votes = maps.Clone(room.Round.Votes)
		return nil
	})

	return snap, votes, err
}

func (reg *Registry) SubmitVote(roomID, playerID, value string) (VoteOutcome, error) {
	var out VoteOutcome

	snap, err := reg.mutate(roomID, func(room *Room) error {
		revealed, err := room.submitVote(playerID, value)
		if err != nil {
			return err
		}
		out.Revealed = revealed
		if revealed {
			out.Votes = maps.Clone(room.Round.Votes)
		}
		return nil
	})
	out.Snapshot = snap

	return out, err
}

func (reg *Registry) mutate(roomID string, fn func(*Room) error) (Snapshot, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, err := reg.lookup(roomID)
	if err != nil {
		return Snapshot{}, err
	}

	room.touch(reg.now())

	if err := fn(room); err != nil {
		return Snapshot{}, err
	}

	return newSnapshot(room), nil
}

func (reg *Registry) Snapshot(roomID string) (Snapshot, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, err := reg.lookup(roomID)
	if err != nil {
		return Snapshot{}, err
	}

	return newSnapshot(room), nil
}

func (reg *Registry) Exists(roomID string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	_, ok := reg.rooms[roomID]

	return ok
}

// Stats returns the number of rooms and players currently held.
func (reg *Registry) Stats() (rooms, players int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, room := range reg.rooms {
		players += len(room.Players)
	}

	return len(reg.rooms), players
}

// reapIdle deletes rooms whose last activity is older than timeout and
// returns their ids.
func (reg *Registry) reapIdle(now time.Time, timeout time.Duration) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cutoff := now.Add(-timeout)

	var reaped []string
	for id, room := range reg.rooms {
		if room.lastActive.Before(cutoff) {
			delete(reg.rooms, id)
			reaped = append(reaped, id)
		}
	}

	return reaped
}

// Close drops every room. The registry stays usable but empty.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	clear(reg.rooms)
}
