package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/pocportal/internal/store"
	"github.com/spf13/cobra"
)

var setRegionCmd = &cobra.Command{
	Use:   "set-region <email> <region>",
	Short: "Set the region of an SE, used by the dashboard region filter",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetRegion,
}

func init() {
	setRegionCmd.Flags().StringVar(&dbPathOverride, "db", "", "Database path (overrides config and POCPORTAL_DB_PATH)")
}

func runSetRegion(cmd *cobra.Command, args []string) error {
	email, region := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])

	env, err := openLocal()
	if err != nil {
		return err
	}
	defer env.Close()

	err = env.store.SetUserRegion(context.Background(), email, region)
	if errors.Is(err, store.ErrUserNotFound) {
		return fmt.Errorf("no user with email %s", email)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Region for %s set to %q.\n", email, region)
	return nil
}
