// Package history keeps an index of recording sessions in SQLite.
//
// Every lifecycle step the bot reports (start, stop, finalize, delivery) is
// stored with timestamps, transcript line and track counts, the export error
// and the delivery outcome. The CLI reads the index for `volo sessions`.
// The database lives next to the session directories and uses WAL mode with
// retries on SQLITE_BUSY so the CLI can read while the bot writes.
package history
