package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// addJSONFlag registers the --json switch shared by the read-only commands.
func addJSONFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "json", false, "Output JSON instead of a table")
}

// writeJSON prints v for scripts. Player and character names are written
// verbatim, so HTML escaping is off.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
