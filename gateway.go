/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	sendBufferSize      = 32
	inboxBufferSize     = 64
	maintenanceEvery    = time.Minute
	minMaintenanceEvery = time.Second
)

// Client is one websocket connection. Its id doubles as the player id.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan any
	baseURL string

	// owned by the gateway loop
	roomID string
	closed bool
}

type inbound struct {
	client *Client
	cmd    command
	err    error
}

// Gateway turns websocket frames into registry operations and fans the
// results out to every connection in the affected room. A single goroutine
// (run) processes all commands in arrival order.
type Gateway struct {
	cfg      *Config
	reg      *Registry
	invites  *InviteStore
	upgrader websocket.Upgrader

	register chan *Client
	unreg    chan *Client
	inbox    chan inbound
	reaped   chan []string
	done     <-chan struct{}

	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	connections atomic.Int64
}

func newGateway(ctx context.Context, cfg *Config, reg *Registry, invites *InviteStore) *Gateway {
	return &Gateway{
		cfg:     cfg,
		reg:     reg,
		invites: invites,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: timeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		register: make(chan *Client),
		unreg:    make(chan *Client),
		inbox:    make(chan inbound, inboxBufferSize),
		reaped:   make(chan []string, 1),
		done:     ctx.Done(),
		clients:  make(map[*Client]bool),
		channels: make(map[string]map[*Client]bool),
	}
}

func (g *Gateway) log() *zerolog.Logger {
	return &g.cfg.logger
}

// run is the only goroutine that touches clients, channels and Client.roomID.
func (g *Gateway) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return

		case c := <-g.register:
			g.clients[c] = true

		case c := <-g.unreg:
			if _, ok := g.clients[c]; !ok {
				continue
			}
			g.handle(c, disconnectCmd{})
			delete(g.clients, c)
			g.closeClient(c)

		case in := <-g.inbox:
			if !g.clients[in.client] || in.client.closed {
				continue
			}
			if in.err != nil {
				g.reply(in.client, SimpleMessage{Type: evtError, Message: in.err.Error()})
				continue
			}
			g.handle(in.client, in.cmd)

		case ids := <-g.reaped:
			g.closeRooms(ids)
		}
	}
}

func (g *Gateway) shutdown() {
	for c := range g.clients {
		g.closeClient(c)
		delete(g.clients, c)
	}
	clear(g.channels)
	g.reg.Close()
}

func (g *Gateway) closeClient(c *Client) {
	g.leaveChannel(c)
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (g *Gateway) joinChannel(c *Client, roomID string) {
	g.leaveChannel(c)

	members, ok := g.channels[roomID]
	if !ok {
		members = make(map[*Client]bool)
		g.channels[roomID] = members
	}
	members[c] = true
	c.roomID = roomID
}

func (g *Gateway) leaveChannel(c *Client) {
	if c.roomID == "" {
		return
	}

	if members, ok := g.channels[c.roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(g.channels, c.roomID)
		}
	}
	c.roomID = ""
}

// deliver queues msg without blocking. A client whose buffer is full is cut
// off; its read pump then reports the disconnect.
func (g *Gateway) deliver(c *Client, msg any) {
	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		g.log().Warn().Str("conn", c.id).Msg("send buffer full, dropping connection")
		g.closeClient(c)
	}
}

func (g *Gateway) reply(c *Client, msg any) {
	g.deliver(c, msg)
}

func (g *Gateway) broadcast(roomID string, msg any) {
	g.broadcastExcept(roomID, nil, msg)
}

func (g *Gateway) broadcastExcept(roomID string, skip *Client, msg any) {
	for c := range g.channels[roomID] {
		if c == skip {
			continue
		}
		g.deliver(c, msg)
	}
}

func (g *Gateway) handle(c *Client, cmd command) {
	switch cmd := cmd.(type) {
	case createRoomCmd:
		g.handleCreateRoom(c, cmd)
	case joinRoomCmd:
		g.handleJoinRoom(c, cmd)
	case leaveRoomCmd:
		g.handleLeaveRoom(c, cmd)
	case startRoundCmd:
		g.handleStartRound(c, cmd)
	case resetRoundCmd:
		g.handleResetRound(c, cmd)
	case submitVoteCmd:
		g.handleSubmitVote(c, cmd)
	case revealVotesCmd:
		g.handleRevealVotes(c, cmd)
	case generateQRCmd:
		g.handleGenerateQR(c, cmd)
	case roomFromTokenCmd:
		g.handleRoomFromToken(c, cmd)
	case disconnectCmd:
		g.handleDisconnect(c)
	default:
		g.log().Error().Str("conn", c.id).Msgf("unhandled command %T", cmd)
	}
}

// departCurrent takes c out of the room it is in, if any, before it enters
// another one. A connection is a player in at most one room.
func (g *Gateway) departCurrent(c *Client, next string) {
	if c.roomID == "" || c.roomID == next {
		return
	}

	previous := c.roomID
	g.leaveChannel(c)

	d, err := g.reg.LeaveRoom(previous, c.id)
	if err != nil || d.Closed {
		return
	}
	g.broadcast(previous, gameStateMessage(d.Snapshot))
}

func (g *Gateway) handleCreateRoom(c *Client, cmd createRoomCmd) {
	g.departCurrent(c, "")

	roomID, snap := g.reg.CreateRoom(c.id, cmd.opts)
	g.joinChannel(c, roomID)

	logf(g.cfg, "GAMES: Created room %s (%s, deck %s)", roomID, snap.Name, snap.DeckType)

	g.reply(c, RoomEnteredMessage{Type: evtRoomCreated, RoomID: roomID, PlayerID: c.id, GameState: snap})
	g.broadcast(roomID, gameStateMessage(snap))
}

func (g *Gateway) handleJoinRoom(c *Client, cmd joinRoomCmd) {
	player, snap, err := g.reg.JoinRoom(cmd.roomID, c.id, cmd.playerName, cmd.spectator)
	if err != nil {
		g.reply(c, SimpleMessage{Type: evtErrorJoining, Message: "Room not found."})
		return
	}

	g.departCurrent(c, cmd.roomID)
	g.joinChannel(c, cmd.roomID)

	logf(g.cfg, "GAMES: Player %q joined %s", player.Name, cmd.roomID)

	g.broadcastExcept(cmd.roomID, c, PlayerJoinedMessage{Type: evtPlayerJoined, Player: player})
	g.reply(c, RoomEnteredMessage{Type: evtRoomJoined, RoomID: cmd.roomID, PlayerID: c.id, GameState: snap})
	g.broadcast(cmd.roomID, gameStateMessage(snap))
}

func (g *Gateway) handleLeaveRoom(c *Client, cmd leaveRoomCmd) {
	playerID := ""
	if c.roomID != "" {
		playerID = c.id
	}

	d, err := g.reg.LeaveRoom(cmd.roomID, playerID)
	switch {
	case errors.Is(err, ErrMissingIdentity), errors.Is(err, ErrNotInRoom):
		g.reply(c, SimpleMessage{Type: evtLeaveError, Message: "Could not process leave request."})
		return
	case err != nil:
		if c.roomID == cmd.roomID {
			g.leaveChannel(c)
		}
		return
	}

	if c.roomID == d.RoomID {
		g.leaveChannel(c)
	}

	if d.Closed {
		logf(g.cfg, "GAMES: Room %s closed, last player left", d.RoomID)
		return
	}

	g.broadcast(d.RoomID, gameStateMessage(d.Snapshot))
}

func (g *Gateway) handleStartRound(c *Client, cmd startRoundCmd) {
	snap, err := g.reg.StartRound(cmd.roomID, c.id)
	if err != nil {
		msg := "Only the moderator can start a new round when status is waiting."
		if errors.Is(err, ErrRoomNotFound) {
			msg = "Room not found."
		}
		g.reply(c, SimpleMessage{Type: evtActionError, Message: msg})
		return
	}

	g.log().Debug().Str("room", cmd.roomID).Str("player", c.id).Msg("round started")
	g.broadcast(cmd.roomID, gameStateMessage(snap))
}

func (g *Gateway) handleResetRound(c *Client, cmd resetRoundCmd) {
	snap, err := g.reg.ResetRound(cmd.roomID, c.id)
	if err != nil {
		msg := "Only the moderator can reset the round."
		if errors.Is(err, ErrRoomNotFound) {
			msg = "Room not found."
		}
		g.reply(c, SimpleMessage{Type: evtActionError, Message: msg})
		return
	}

	g.log().Debug().Str("room", cmd.roomID).Str("player", c.id).Msg("round reset")
	g.broadcast(cmd.roomID, gameStateMessage(snap))
}

func (g *Gateway) handleSubmitVote(c *Client, cmd submitVoteCmd) {
	out, err := g.reg.SubmitVote(cmd.roomID, c.id, cmd.vote)
	if err != nil {
		msg := "Could not register the vote (round not active or spectator?)."
		if errors.Is(err, ErrRoomNotFound) {
			msg = "Room not found."
		}
		g.reply(c, SimpleMessage{Type: evtError, Message: msg})
		return
	}

	g.broadcast(cmd.roomID, PlayerVotedMessage{Type: evtPlayerVoted, PlayerID: c.id})
	g.broadcast(cmd.roomID, gameStateMessage(out.Snapshot))

	if out.Revealed {
		g.log().Debug().Str("room", cmd.roomID).Msg("all votes in, auto-revealed")
		g.broadcast(cmd.roomID, VotesRevealedMessage{Type: evtVotesRevealed, Votes: out.Votes, GameState: out.Snapshot})
	}
}

func (g *Gateway) handleRevealVotes(c *Client, cmd revealVotesCmd) {
	snap, votes, err := g.reg.RevealVotes(cmd.roomID, c.id)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, ErrRoomNotFound):
			msg = "Room not found."
		case errors.Is(err, ErrNotModerator):
			msg = "Only the moderator can reveal the votes."
		default:
			msg = "Could not reveal the votes (round was not in voting?)."
		}
		g.reply(c, SimpleMessage{Type: evtError, Message: msg})
		return
	}

	g.broadcast(cmd.roomID, VotesRevealedMessage{Type: evtVotesRevealed, Votes: votes, GameState: snap})
	g.broadcast(cmd.roomID, gameStateMessage(snap))
}

func (g *Gateway) handleGenerateQR(c *Client, cmd generateQRCmd) {
	roomID := cmd.roomID
	if roomID == "" {
		roomID = c.roomID
	}

	if !g.reg.Exists(roomID) {
		g.reply(c, SimpleMessage{Type: evtError, Message: "Room not found."})
		return
	}

	token := g.invites.Generate(roomID)

	g.reply(c, QRCodeMessage{
		Type:      evtQRGenerated,
		RoomID:    roomID,
		Token:     token,
		InviteURL: inviteURL(c.baseURL, token),
		QRURL:     qrURL(c.baseURL, roomID, token),
	})
}

func (g *Gateway) handleRoomFromToken(c *Client, cmd roomFromTokenCmd) {
	roomID, err := g.invites.Resolve(cmd.token)
	if err != nil || !g.reg.Exists(roomID) {
		g.reply(c, SimpleMessage{Type: evtError, Message: "Invalid or expired invitation link."})
		return
	}

	g.reply(c, RoomIDMessage{Type: evtRoomFromToken, RoomID: roomID})
}

func (g *Gateway) handleDisconnect(c *Client) {
	g.leaveChannel(c)

	d, found := g.reg.Disconnect(c.id)
	if !found {
		return
	}

	if d.Closed {
		logf(g.cfg, "GAMES: Room %s closed, last player disconnected", d.RoomID)
		return
	}

	var newModerator *string
	if d.NewModeratorID != "" {
		newModerator = &d.NewModeratorID
	}

	g.broadcast(d.RoomID, PlayerLeftMessage{Type: evtPlayerLeft, PlayerID: c.id, NewModeratorID: newModerator})
	g.broadcast(d.RoomID, gameStateMessage(d.Snapshot))
}

// closeRooms tells the members of reaped rooms that their room is gone.
func (g *Gateway) closeRooms(ids []string) {
	for _, id := range ids {
		logf(g.cfg, "GAMES: Closed idle room %s", id)

		for c := range g.channels[id] {
			g.deliver(c, SimpleMessage{Type: evtRoomClosed, Message: "This room was closed after a period of inactivity."})
			c.roomID = ""
		}
		delete(g.channels, id)
	}
}

// maintenanceInterval is half the session timeout, kept between
// minMaintenanceEvery and maintenanceEvery.
func maintenanceInterval(sessionTimeout time.Duration) time.Duration {
	if sessionTimeout <= 0 {
		return maintenanceEvery
	}

	return min(max(sessionTimeout/2, minMaintenanceEvery), maintenanceEvery)
}

// maintain expires idle rooms, when enabled, and stale invite tokens.
func (g *Gateway) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval(g.cfg.sessionTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if g.cfg.sessionTimeout > 0 {
				if ids := g.reg.reapIdle(now, g.cfg.sessionTimeout); len(ids) > 0 {
					select {
					case g.reaped <- ids:
					case <-ctx.Done():
						return
					}
				}
			}

			if n := g.invites.prune(g.reg.Exists); n > 0 {
				g.log().Debug().Int("tokens", n).Msg("pruned invite tokens")
			}
		}
	}
}

// enqueue hands a frame's command to the loop, giving up once the gateway
// has shut down.
func (g *Gateway) enqueue(in inbound) bool {
	select {
	case g.inbox <- in:
		return true
	case <-g.done:
		return false
	}
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		select {
		case g.unreg <- c:
		case <-g.done:
		}
		_ = c.conn.Close()
		g.connections.Add(-1)
	}()

	c.conn.SetReadLimit(g.cfg.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.cfg.pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log().Warn().Err(err).Str("conn", c.id).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(g.cfg.pongTimeout))

		cmd, err := parseCommand(data)
		if !g.enqueue(inbound{client: c, cmd: cmd, err: err}) {
			return
		}
	}
}

func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(g.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				g.log().Debug().Err(err).Str("conn", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWS upgrades the request and gives the connection a fresh player id.
func serveWS(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log().Debug().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := &Client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan any, sendBufferSize),
			baseURL: baseURL(cfg, r),
		}

		select {
		case g.register <- c:
		case <-g.done:
			_ = conn.Close()
			return
		}

		g.connections.Add(1)
		g.log().Debug().Str("conn", c.id).Str("remote", realIP(r)).Msg("websocket connected")

		go g.writePump(c)
		g.readPump(c)
	}
}
