package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lithe-dev/lithe"
	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/snapshot"
)

func snapshotCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the snapshot backend",
		Long: `Inspect and manage persisted store snapshots.

Uses the snapshot backend from lithe.json (or LITHE_* environment
variables), the same one the server writes to.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to lithe.json (default ./lithe.json)")

	cmd.AddCommand(
		snapshotListCmd(&configPath),
		snapshotShowCmd(&configPath),
		snapshotDeleteCmd(&configPath),
	)

	return cmd
}

func snapshotListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(*configPath, func(ctx context.Context, backend snapshot.Store) error {
				records, err := backend.LoadAll(ctx)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					info("no snapshots")
					return nil
				}

				names := make([]string, 0, len(records))
				for name := range records {
					names = append(names, name)
				}
				sort.Strings(names)

				fmt.Printf("  %-24s %8s %8s\n", "STORE", "REV", "BYTES")
				for _, name := range names {
					rec := records[name]
					fmt.Printf("  %-24s %8d %8d\n", name, rec.Rev, len(rec.Data))
				}
				return nil
			})
		},
	}
}

func snapshotShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <store>",
		Short: "Print one persisted store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(*configPath, func(ctx context.Context, backend snapshot.Store) error {
				data, rev, err := backend.Load(ctx, args[0])
				if err != nil {
					return err
				}
				if data == nil {
					return errors.New("E302").WithDetail("store %q", args[0])
				}
				info("rev %d", rev)
				fmt.Printf("%s\n", data)
				return nil
			})
		},
	}
}

func snapshotDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <store>",
		Short: "Delete one persisted store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(*configPath, func(ctx context.Context, backend snapshot.Store) error {
				if err := backend.Delete(ctx, args[0]); err != nil {
					return err
				}
				success("deleted %s", args[0])
				return nil
			})
		},
		Args: cobra.ExactArgs(1),
	}
}

// withBackend opens the configured snapshot backend, runs fn, and
// closes the backend.
func withBackend(configPath string, fn func(context.Context, snapshot.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := lithe.NewSnapshotBackend(cfg)
	if err != nil {
		return err
	}
	if backend == nil {
		return errors.New("E202").WithDetail("no snapshot backend configured").
			WithSuggestion(`Set snapshot.backend in lithe.json or LITHE_SNAPSHOT_BACKEND.`)
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, backend)
}
