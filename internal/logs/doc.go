// Package logs tails the bot's log file for `volo logs`.
//
// Reads use bounded memory, a negative offset returns the last N lines, and
// follow mode polls for appended lines until a wait deadline or context
// cancellation. A Match function narrows output to one session or guild.
package logs
