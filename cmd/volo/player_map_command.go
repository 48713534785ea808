package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"volo/internal/playermap"
)

func newPlayerMapCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player-map",
		Short: "Inspect and edit the speaker to player/character map",
	}
	cmd.AddCommand(newPlayerMapShowCommand(ctx))
	cmd.AddCommand(newPlayerMapSetCommand(ctx))
	return cmd
}

func openPlayerMap(ctx *commandContext) (*playermap.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.PlayerMapFile) == "" {
		return nil, errors.New("paths.player_map_file is not configured")
	}
	return playermap.OpenStore(cfg.Paths.PlayerMapFile)
}

func newPlayerMapShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the player map",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPlayerMap(ctx)
			if err != nil {
				return err
			}
			m := store.Snapshot()
			if asJSON {
				return writeJSON(cmd, m)
			}
			out := cmd.OutOrStdout()
			if len(m) == 0 {
				fmt.Fprintf(out, "Player map %s is empty\n", store.Path())
				return nil
			}
			rows := make([][]string, 0, len(m))
			for _, id := range m.IDs() {
				entry := m[id]
				rows = append(rows, []string{id, entry.Player, entry.Character})
			}
			fmt.Fprintln(out, renderTable([]string{"User ID", "Player", "Character"}, rows, nil))
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newPlayerMapSetCommand(ctx *commandContext) *cobra.Command {
	var player, character string
	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Add or update one player map entry; omitted fields keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("user id is required")
			}
			entry := playermap.Entry{Player: strings.TrimSpace(player), Character: strings.TrimSpace(character)}
			if entry.Player == "" && entry.Character == "" {
				return errors.New("pass --player and/or --character")
			}
			store, err := openPlayerMap(ctx)
			if err != nil {
				return err
			}
			if existing, ok := store.Lookup(id); ok {
				if entry.Player == "" {
					entry.Player = existing.Player
				}
				if entry.Character == "" {
					entry.Character = existing.Character
				}
			}
			if _, err := store.Update(playermap.Map{id: entry}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s in %s\n", id, store.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "Player name")
	cmd.Flags().StringVar(&character, "character", "", "Character name")
	return cmd
}
