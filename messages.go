/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ClientMessage is every frame a client may send; Type selects which fields
// are read.
type ClientMessage struct {
	Type             string         `json:"type"`
	RoomID           string         `json:"roomId,omitempty"`
	RoomName         string         `json:"roomName,omitempty"`
	PlayerName       string         `json:"playerName,omitempty"`
	DeckType         string         `json:"deckType,omitempty"`
	CustomDeckValues []cardValue    `json:"customDeckValues,omitempty"`
	Settings         map[string]any `json:"settings,omitempty"`
	IsSpectator      bool           `json:"isSpectator,omitempty"`
	Vote             *cardValue     `json:"vote,omitempty"`
	Token            string         `json:"token,omitempty"`
}

// cardValue accepts a card as either a JSON string or a JSON number.
type cardValue string

func (c *cardValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = cardValue(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("card must be a string or number: %w", err)
	}
	*c = cardValue(strconv.FormatFloat(n, 'f', -1, 64))

	return nil
}

// cardStrings drops null and blank cards.
func cardStrings(cards []cardValue) []string {
	var out []string
	for _, c := range cards {
		if strings.TrimSpace(string(c)) == "" {
			continue
		}
		out = append(out, string(c))
	}
	return out
}

// command is the closed set of operations the gateway dispatches.
type command interface{ isCommand() }

type createRoomCmd struct{ opts RoomOptions }

type joinRoomCmd struct {
	roomID     string
	playerName string
	spectator  bool
}

type leaveRoomCmd struct{ roomID string }

type startRoundCmd struct{ roomID string }

type resetRoundCmd struct{ roomID string }

type submitVoteCmd struct {
	roomID string
	vote   string
}

type revealVotesCmd struct{ roomID string }

type generateQRCmd struct{ roomID string }

type roomFromTokenCmd struct{ token string }

// disconnectCmd never comes off the wire; the gateway issues it when a
// connection dies.
type disconnectCmd struct{}

func (createRoomCmd) isCommand()    {}
func (joinRoomCmd) isCommand()      {}
func (leaveRoomCmd) isCommand()     {}
func (startRoundCmd) isCommand()    {}
func (resetRoundCmd) isCommand()    {}
func (submitVoteCmd) isCommand()    {}
func (revealVotesCmd) isCommand()   {}
func (generateQRCmd) isCommand()    {}
func (roomFromTokenCmd) isCommand() {}
func (disconnectCmd) isCommand()    {}

const (
	msgCreateRoom    = "create_room"
	msgJoinRoom      = "join_room"
	msgLeaveRoom     = "leave_room"
	msgStartRound    = "start_round"
	msgResetRound    = "reset_round"
	msgSubmitVote    = "submit_vote"
	msgRevealVotes   = "reveal_votes"
	msgGenerateQR    = "generate_qrcode"
	msgRoomFromToken = "get_room_id_from_token"
)

// parseCommand decodes one inbound frame.
func parseCommand(data []byte) (command, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch m.Type {
	case msgCreateRoom:
		return createRoomCmd{opts: RoomOptions{
			RoomName:         m.RoomName,
			PlayerName:       m.PlayerName,
			DeckType:         m.DeckType,
			CustomDeckValues: cardStrings(m.CustomDeckValues),
			Settings:         m.Settings,
		}}, nil
	case msgJoinRoom:
		return joinRoomCmd{roomID: m.RoomID, playerName: m.PlayerName, spectator: m.IsSpectator}, nil
	case msgLeaveRoom:
		return leaveRoomCmd{roomID: m.RoomID}, nil
	case msgStartRound:
		return startRoundCmd{roomID: m.RoomID}, nil
	case msgResetRound:
		return resetRoundCmd{roomID: m.RoomID}, nil
	case msgSubmitVote:
		if m.Vote == nil {
			return nil, fmt.Errorf("%w: vote is required", ErrMalformedMessage)
		}
		return submitVoteCmd{roomID: m.RoomID, vote: string(*m.Vote)}, nil
	case msgRevealVotes:
		return revealVotesCmd{roomID: m.RoomID}, nil
	case msgGenerateQR:
		return generateQRCmd{roomID: m.RoomID}, nil
	case msgRoomFromToken:
		return roomFromTokenCmd{token: m.Token}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, m.Type)
	}
}

// Outbound event names.
const (
	evtUpdateGameState = "update_game_state"
	evtRoomCreated     = "room_created"
	evtRoomJoined      = "room_joined"
	evtPlayerJoined    = "player_joined"
	evtPlayerLeft      = "player_left"
	evtPlayerVoted     = "player_voted"
	evtVotesRevealed   = "votes_revealed"
	evtQRGenerated     = "qrcode_generated"
	evtRoomFromToken   = "room_id_from_token"
	evtRoomClosed      = "room_closed"

	evtErrorJoining = "error_joining"
	evtLeaveError   = "leave_error"
	evtActionError  = "action_error"
	evtError        = "error"
)

type GameStateMessage struct {
	Type      string   `json:"type"`
	GameState Snapshot `json:"gameState"`
}

// RoomEnteredMessage answers create_room and join_room to the sender.
type RoomEnteredMessage struct {
	Type      string   `json:"type"`
	RoomID    string   `json:"roomId"`
	PlayerID  string   `json:"playerId"`
	GameState Snapshot `json:"gameState"`
}

type PlayerJoinedMessage struct {
	Type   string     `json:"type"`
	Player PlayerView `json:"player"`
}

type PlayerLeftMessage struct {
	Type           string  `json:"type"`
	PlayerID       string  `json:"playerId"`
	NewModeratorID *string `json:"newModeratorId"`
}

type PlayerVotedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type VotesRevealedMessage struct {
	Type      string            `json:"type"`
	Votes     map[string]string `json:"votes"`
	GameState Snapshot          `json:"gameState"`
}

type QRCodeMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	Token     string `json:"token"`
	InviteURL string `json:"url"`
	QRURL     string `json:"qrUrl"`
}

type RoomIDMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// SimpleMessage is for errors and plain notifications.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func gameStateMessage(snap Snapshot) GameStateMessage {
	return GameStateMessage{Type: evtUpdateGameState, GameState: snap}
}
