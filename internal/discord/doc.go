// Package discord connects the bot to Discord through discordgo.
//
// Client owns the gateway session: it registers the slash commands on Ready,
// dispatches interactions to the bot with a fresh correlation id, tracks the
// bot's own voice state, and implements the bot Platform (voice joins, member
// listing, artifact channels) plus display-name lookup for transcripts.
// Voice connections forward received opus packets to the capture worker,
// resolving speakers from the SSRC announced in speaking updates.
package discord
