/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	reg := newRegistry()

	roomID, snap := reg.CreateRoom("p1", RoomOptions{DeckType: "tshirt"})

	require.NotEmpty(t, roomID)
	assert.Equal(t, roomID, snap.ID)
	require.NotNil(t, snap.ModeratorID)
	assert.Equal(t, "p1", *snap.ModeratorID)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Moderator_"+shortID(roomID), snap.Players[0].Name)
	assert.Equal(t, DeckTShirt, snap.DeckType)
	assert.Equal(t, StatusWaiting, snap.CurrentRound.Status)
	assert.True(t, reg.Exists(roomID))
}

func TestCreateRoomRetriesCollidingIDs(t *testing.T) {
	reg := newRegistry()
	ids := []string{"same", "same", "other"}
	reg.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, _ := reg.CreateRoom("p1", RoomOptions{})
	second, _ := reg.CreateRoom("p2", RoomOptions{})

	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}

func TestJoinRoom(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("p1", RoomOptions{PlayerName: "Mod"})

	player, snap, err := reg.JoinRoom(roomID, "p2", "", false)
	require.NoError(t, err)
	assert.Equal(t, "Player_"+shortID("p2"), player.Name)
	assert.Len(t, snap.Players, 2)

	player, snap, err = reg.JoinRoom(roomID, "p2", "Bea", true)
	require.NoError(t, err)
	assert.Equal(t, "Bea", player.Name)
	assert.Len(t, snap.Players, 2, "rejoining does not duplicate")

	_, _, err = reg.JoinRoom("missing", "p3", "Cy", false)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoom(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("p1", RoomOptions{})
	_, _, err := reg.JoinRoom(roomID, "p2", "Bo", false)
	require.NoError(t, err)

	_, err = reg.LeaveRoom(roomID, "")
	assert.ErrorIs(t, err, ErrMissingIdentity)
	_, err = reg.LeaveRoom("", "p1")
	assert.ErrorIs(t, err, ErrMissingIdentity)
	_, err = reg.LeaveRoom("missing", "p1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	other, _ := reg.CreateRoom("p9", RoomOptions{})
	_, err = reg.LeaveRoom(other, "p1")
	assert.ErrorIs(t, err, ErrNotInRoom)
	snap, err := reg.Snapshot(other)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)

	d, err := reg.LeaveRoom(roomID, "p1")
	require.NoError(t, err)
	assert.True(t, d.Removed)
	assert.Equal(t, "p2", d.NewModeratorID)
	assert.False(t, d.Closed)
	require.NotNil(t, d.Snapshot.ModeratorID)
	assert.Equal(t, "p2", *d.Snapshot.ModeratorID)

	d, err = reg.LeaveRoom(roomID, "p2")
	require.NoError(t, err)
	assert.True(t, d.Closed)
	assert.False(t, reg.Exists(roomID))

	_, _, err = reg.JoinRoom(roomID, "p3", "Cy", false)
	assert.ErrorIs(t, err, ErrRoomNotFound, "deleted rooms cannot be joined")
}

func TestLeaveRoomOnlySpectatorsRemain(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("p1", RoomOptions{})
	_, _, err := reg.JoinRoom(roomID, "watcher", "W", true)
	require.NoError(t, err)

	d, err := reg.LeaveRoom(roomID, "p1")
	require.NoError(t, err)
	assert.Empty(t, d.NewModeratorID)
	assert.Nil(t, d.Snapshot.ModeratorID)
	assert.False(t, d.Closed)

	_, _, err = reg.JoinRoom(roomID, "p2", "Late", false)
	require.NoError(t, err)
	_, err = reg.StartRound(roomID, "watcher")
	assert.ErrorIs(t, err, ErrNotModerator)

	snap, err := reg.StartRound(roomID, "p2")
	require.NoError(t, err, "first voter to act claims the vacant seat")
	assert.Equal(t, "p2", *snap.ModeratorID)
}

func TestDisconnect(t *testing.T) {
	reg := newRegistry()
	roomA, _ := reg.CreateRoom("a1", RoomOptions{})
	roomB, _ := reg.CreateRoom("b1", RoomOptions{})
	_, _, err := reg.JoinRoom(roomB, "b2", "B2", false)
	require.NoError(t, err)

	d, found := reg.Disconnect("b2")
	require.True(t, found)
	assert.Equal(t, roomB, d.RoomID)
	assert.Empty(t, d.NewModeratorID)
	assert.Len(t, d.Snapshot.Players, 1)

	_, found = reg.Disconnect("nobody")
	assert.False(t, found)

	d, found = reg.Disconnect("a1")
	require.True(t, found)
	assert.True(t, d.Closed)
	assert.False(t, reg.Exists(roomA))
}

func TestVotingFlow(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("mod", RoomOptions{})
	for _, id := range []string{"p2", "p3"} {
		_, _, err := reg.JoinRoom(roomID, id, id, false)
		require.NoError(t, err)
	}

	_, err := reg.SubmitVote(roomID, "p2", "1")
	assert.ErrorIs(t, err, ErrInvalidRoundState)

	_, err = reg.StartRound(roomID, "p2")
	assert.ErrorIs(t, err, ErrNotModerator)

	snap, err := reg.StartRound(roomID, "mod")
	require.NoError(t, err)
	assert.Equal(t, StatusVoting, snap.CurrentRound.Status)

	_, err = reg.StartRound(roomID, "mod")
	assert.ErrorIs(t, err, ErrInvalidRoundState)

	votes := []struct{ id, value string }{{"mod", "1"}, {"p2", "2"}}
	for _, v := range votes {
		out, err := reg.SubmitVote(roomID, v.id, v.value)
		require.NoError(t, err)
		assert.False(t, out.Revealed)
		assert.Empty(t, out.Snapshot.CurrentRound.Votes)
	}

	out, err := reg.SubmitVote(roomID, "p3", "2")
	require.NoError(t, err)
	require.True(t, out.Revealed)
	assert.Equal(t, map[string]string{"mod": "1", "p2": "2", "p3": "2"}, out.Votes)
	assert.Equal(t, StatusRevealed, out.Snapshot.CurrentRound.Status)
	require.NotNil(t, out.Snapshot.CurrentRound.Results)
	assert.Equal(t, []string{"2"}, out.Snapshot.CurrentRound.Results.Majority)
	assert.InDelta(t, 1.67, *out.Snapshot.CurrentRound.Results.Average, 1e-9)

	_, _, err = reg.RevealVotes(roomID, "mod")
	assert.ErrorIs(t, err, ErrInvalidRoundState)

	snap, err = reg.ResetRound(roomID, "mod")
	require.NoError(t, err)
	assert.Equal(t, StatusVoting, snap.CurrentRound.Status)
	for _, p := range snap.Players {
		assert.False(t, p.HasVoted)
	}

	_, err = reg.StartRound("missing", "mod")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = reg.SubmitVote("missing", "mod", "1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRevealVotesManual(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("mod", RoomOptions{Settings: map[string]any{"autoReveal": false}})
	_, err := reg.StartRound(roomID, "mod")
	require.NoError(t, err)

	out, err := reg.SubmitVote(roomID, "mod", "8")
	require.NoError(t, err)
	assert.False(t, out.Revealed)

	_, _, err = reg.RevealVotes(roomID, "someone")
	assert.ErrorIs(t, err, ErrNotModerator)

	snap, votes, err := reg.RevealVotes(roomID, "mod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mod": "8"}, votes)
	assert.Equal(t, votes, snap.CurrentRound.Votes)
}

func TestReapIdle(t *testing.T) {
	now := time.Now()

	reg := newRegistry()
	reg.now = func() time.Time { return now }

	stale, _ := reg.CreateRoom("p1", RoomOptions{})
	now = now.Add(time.Hour)
	fresh, _ := reg.CreateRoom("p2", RoomOptions{})

	reaped := reg.reapIdle(now.Add(10*time.Minute), 30*time.Minute)

	assert.Equal(t, []string{stale}, reaped)
	assert.False(t, reg.Exists(stale))
	assert.True(t, reg.Exists(fresh))
}

func TestRegistryStatsAndClose(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("p1", RoomOptions{})
	_, _, err := reg.JoinRoom(roomID, "p2", "B", true)
	require.NoError(t, err)
	reg.CreateRoom("p3", RoomOptions{})

	rooms, players := reg.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, players)

	reg.Close()
	rooms, players = reg.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, players)
}

func TestRegistryConcurrentVotes(t *testing.T) {
	reg := newRegistry()
	roomID, _ := reg.CreateRoom("mod", RoomOptions{Settings: map[string]any{"autoReveal": false}})

	const voters = 50
	for i := 0; i < voters; i++ {
		_, _, err := reg.JoinRoom(roomID, fmt.Sprintf("p%d", i), "", false)
		require.NoError(t, err)
	}
	_, err := reg.StartRound(roomID, "mod")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := reg.SubmitVote(roomID, id, "3")
			assert.NoError(t, err)
		}(fmt.Sprintf("p%d", i))
	}
	wg.Wait()

	_, votes, err := reg.RevealVotes(roomID, "mod")
	require.NoError(t, err)
	assert.Len(t, votes, voters)
}
