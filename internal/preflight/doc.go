// Package preflight provides readiness checks for the filesystem paths and
// external services Volo depends on.
//
// The daemon runs RunAll before connecting to the gateway and refuses to start
// when a required check fails. "volo status" renders the same results next to
// the binary checks from CheckSystemDeps.
//
// Optional integrations are only checked when configured.
package preflight
