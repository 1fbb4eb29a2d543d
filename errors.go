/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"io"

	"github.com/rs/zerolog"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotModerator      = errors.New("only the moderator may do that")
	ErrInvalidRoundState = errors.New("action not allowed in the current round status")
	ErrIneligibleVoter   = errors.New("player is not eligible to vote")
	ErrMissingIdentity   = errors.New("room id or player id missing")
	ErrNotInRoom         = errors.New("player is not in this room")
	ErrInvalidInvite     = errors.New("invite token is invalid or expired")
	ErrUnknownCommand    = errors.New("unknown message type")
	ErrMalformedMessage  = errors.New("malformed message")
)

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: logDate,
		NoColor:    true,
	}).Level(level).With().Timestamp().Logger()
}

// logf writes an info-level line, which only reaches output with --verbose.
func logf(cfg *Config, format string, args ...any) {
	cfg.logger.Info().Msgf(format, args...)
}
