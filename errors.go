/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Failures on request/response events (create-room, join-room,
// generate-number) are surfaced to the originating connection as a
// room-error message carrying one of these strings. Fire-and-forget
// events that fail a precondition are dropped without a reply.
var (
	errInvalidName   = errors.New("Invalid player name")
	errRoomNotFound  = errors.New("Room does not exist")
	errRoomFull      = fmt.Errorf("Room is full (max %d players)", maxPlayers)
	errAlreadyJoined = errors.New("Already in this room")
	errNotGamemaster = errors.New("Only the gamemaster can do that")
	errBadRange      = errors.New("Invalid number range")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
