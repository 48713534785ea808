// Package archive copies finalized session artifacts to S3-compatible object
// storage.
//
// Objects are keyed <prefix>/<guild>/<session>/<path relative to the session
// root>. Archival runs after delivery and its failures are only logged.
package archive
