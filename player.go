/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Player is one connected participant. The id is the connection's identity,
// so a reconnect always produces a new Player.
type Player struct {
	ID          string
	Name        string
	IsSpectator bool
	IsConnected bool
	HasVoted    bool
}

func newPlayer(id, name string, isSpectator bool) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		IsSpectator: isSpectator,
		IsConnected: true,
	}
}

func (p *Player) setVoted() {
	if !p.IsSpectator {
		p.HasVoted = true
	}
}

func (p *Player) resetVote() {
	p.HasVoted = false
}

// canVote reports whether the player counts towards quorum.
func (p *Player) canVote() bool {
	return !p.IsSpectator && p.IsConnected
}
