/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type invite struct {
	roomID    string
	expiresAt time.Time
}

// InviteStore maps short-lived tokens to room ids for QR code joins.
type InviteStore struct {
	mu     sync.Mutex
	tokens map[string]invite
	ttl    time.Duration
	now    func() time.Time
}

func newInviteStore(ttl time.Duration) *InviteStore {
	return &InviteStore{
		tokens: make(map[string]invite),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *InviteStore) Generate(roomID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.tokens[token] = invite{
		roomID:    roomID,
		expiresAt: s.now().Add(s.ttl),
	}

	return token
}

// Resolve returns the room a token points at. Expired tokens are removed.
func (s *InviteStore) Resolve(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidInvite
	}

	if s.now().After(inv.expiresAt) {
		delete(s.tokens, token)
		return "", ErrInvalidInvite
	}

	return inv.roomID, nil
}

// prune drops expired tokens and any token for a room that no longer exists.
func (s *InviteStore) prune(alive func(roomID string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for token, inv := range s.tokens {
		if now.After(inv.expiresAt) || !alive(inv.roomID) {
			delete(s.tokens, token)
			n++
		}
	}

	return n
}

// baseURL derives the externally visible origin of a request, respecting
// TLS and X-Forwarded-Proto.
func baseURL(cfg *Config, r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix
}

func inviteURL(base, token string) string {
	return base + "/invite/" + url.PathEscape(token)
}

func qrURL(base, roomID, token string) string {
	return base + "/rooms/" + url.PathEscape(roomID) + "/qr?token=" + url.QueryEscape(token)
}

// serveQR renders a PNG QR code of the invite link for a room. Without a
// token query parameter a fresh invite is issued.
func serveQR(cfg *Config, reg *Registry, invites *InviteStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		roomID := ps.ByName("roomid")
		if !reg.Exists(roomID) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			token = invites.Generate(roomID)
		} else if target, err := invites.Resolve(token); err != nil || target != roomID {
			http.Error(w, ErrInvalidInvite.Error(), http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(inviteURL(baseURL(cfg, r), token), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			errs <- fmt.Errorf("qr for room %s: %w", roomID, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err
			return
		}

		logf(cfg, "SERVE: QR code for room %s (%s) to %s in %s",
			roomID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveInvite redirects an invite link into the client's QR join route.
func serveInvite(cfg *Config, reg *Registry, invites *InviteStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := ps.ByName("token")

		roomID, err := invites.Resolve(token)
		if err != nil || !reg.Exists(roomID) {
			http.Error(w, "Invalid or expired invitation link", http.StatusNotFound)
			return
		}

		target := baseURL(cfg, r) + "/#/join/qrcode/" + url.PathEscape(roomID) + "?token=" + url.QueryEscape(token)
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}
