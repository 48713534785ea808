// Package delivery posts finalized session artifacts to a chat channel, with
// a single ZIP bundle as the fallback for files that failed individually.
package delivery
