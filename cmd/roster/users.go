package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brattlof/roster/internal/usersapi"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users through the users API",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		users, err := client.List(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"users": users})
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := client.Create(cmd.Context(), inputFlags(cmd))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), "created", res)
		return nil
	},
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		res, err := client.Update(cmd.Context(), args[0], inputFlags(cmd))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), "updated "+args[0], res)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete one or more users",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("concurrency")
		deleted, err := deleteUsers(cmd, client, args, limit)
		for _, id := range deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return err
	},
}

// deleteUsers deletes ids concurrently and returns the ids that were
// deleted, in argument order, along with the first failure.
func deleteUsers(cmd *cobra.Command, client *usersapi.Client, ids []string, limit int) ([]string, error) {
	g, ctx := errgroup.WithContext(cmd.Context())
	if limit > 0 {
		g.SetLimit(limit)
	}

	done := make([]bool, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			if _, err := client.Delete(ctx, id, usersapi.Input{}); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	var deleted []string
	for i, ok := range done {
		if ok {
			deleted = append(deleted, ids[i])
		}
	}
	return deleted, err
}

func newClient(cmd *cobra.Command) (*usersapi.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	var level slog.LevelVar
	logger := setupLogger(cfg, &level, cmd.ErrOrStderr())
	return usersapi.New(cfg.API.BaseURL,
		usersapi.WithTimeout(cfg.APITimeout()),
		usersapi.WithLogger(logger),
	)
}

func inputFlags(cmd *cobra.Command) usersapi.Input {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	return usersapi.Input{Name: name, Email: email}
}

func printUsers(out io.Writer, users []usersapi.User) {
	if len(users) == 0 {
		fmt.Fprintln(out, "No users")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL")
	fmt.Fprintln(w, "--\t----\t-----")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	w.Flush()
}

func printResult(out io.Writer, action string, res usersapi.Result) {
	switch {
	case res.User != nil:
		fmt.Fprintf(out, "%s: %s <%s> (%s)\n", action, res.User.Name, res.User.Email, res.User.ID)
	default:
		fmt.Fprintln(out, action)
	}
	if res.Message != "" {
		fmt.Fprintln(out, res.Message)
	}
}
