// Package main hosts the volo CLI.
//
// "volo run" starts the bot in the foreground. The remaining commands work on
// the local configuration, the session history database and the session tree,
// so they are usable while the bot is offline.
package main
