/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

type RoundStatus string

const (
	StatusWaiting  RoundStatus = "waiting"
	StatusVoting   RoundStatus = "voting"
	StatusRevealed RoundStatus = "revealed"
)

// Results is the aggregate computed on reveal.
type Results struct {
	Average      *float64       `json:"average"`
	Distribution map[string]int `json:"distribution"`
	Majority     []string       `json:"majority"`
	VoteCount    int            `json:"voteCount"`
}

// Round is one vote-collect-reveal cycle. Results is non-nil only while
// Status is revealed.
type Round struct {
	Status  RoundStatus
	Votes   map[string]string
	Results *Results

	// player ids in order of their first vote this round
	order []string
}

func newRound() *Round {
	return &Round{
		Status: StatusWaiting,
		Votes:  make(map[string]string),
	}
}

func (r *Round) restart() {
	r.Status = StatusVoting
	r.Votes = make(map[string]string)
	r.order = nil
	r.Results = nil
}

func (r *Round) record(playerID, value string) {
	if _, ok := r.Votes[playerID]; !ok {
		r.order = append(r.order, playerID)
	}
	r.Votes[playerID] = value
}

func (r *Round) purge(playerID string) {
	if _, ok := r.Votes[playerID]; !ok {
		return
	}
	delete(r.Votes, playerID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == playerID })
}

// reveal moves a voting round to revealed and computes its results.
func (r *Round) reveal() bool {
	if r.Status != StatusVoting {
		return false
	}

	values := make([]string, 0, len(r.order))
	for _, id := range r.order {
		values = append(values, r.Votes[id])
	}

	r.Results = aggregate(values)
	r.Status = StatusRevealed

	return true
}

// aggregate builds results from raw vote values, given in submission order.
func aggregate(values []string) *Results {
	res := &Results{
		Distribution: make(map[string]int),
		Majority:     []string{},
		VoteCount:    len(values),
	}

	var (
		sum     float64
		numeric int
		seen    []string
	)

	for _, v := range values {
		if res.Distribution[v] == 0 {
			seen = append(seen, v)
		}
		res.Distribution[v]++

		if n, ok := parseNumericVote(v); ok {
			sum += n
			numeric++
		}
	}

	best := 0
	for _, v := range seen {
		switch count := res.Distribution[v]; {
		case count > best:
			best = count
			res.Majority = []string{v}
		case count == best:
			res.Majority = append(res.Majority, v)
		}
	}

	if numeric > 0 {
		avg := math.Round(sum/float64(numeric)*100) / 100
		res.Average = &avg
	}

	return res
}

// parseNumericVote maps a card to its numeric value. Symbolic cards such as
// "?", the coffee card or t-shirt sizes are not numeric.
func parseNumericVote(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == halfCard {
		return 0.5, true
	}
	if v == "" || strings.ContainsAny(v, "xX_") {
		return 0, false
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}

	return n, true
}
