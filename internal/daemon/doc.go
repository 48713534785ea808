// Package daemon owns the long-running Volo process.
//
// It connects the bot to the gateway under a flock-based lock that prevents
// two instances from recording the same guilds. Stop finalizes every active
// session before the gateway closes; Close additionally releases the stores and
// publishers handed over in Components.
package daemon
