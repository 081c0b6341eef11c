package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "roster",
	Short:   "Roster - server-rendered user management UI",
	Version: version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "roster v%s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  Built:  %s\n", date)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve the UI on")
	serveCmd.Flags().StringP("config", "c", "", "Path to config file")
	serveCmd.Flags().String("api", "", "Base URL of the users API")

	stubCmd.Flags().IntP("port", "p", 3000, "Port to serve the stub API on")
	stubCmd.Flags().StringP("config", "c", "", "Path to config file")
	stubCmd.Flags().String("db", "", "Path to the SQLite database")

	usersCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	usersCmd.PersistentFlags().String("api", "", "Base URL of the users API")
	usersListCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	for _, cmd := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		cmd.Flags().StringP("name", "n", "", "User name")
		cmd.Flags().StringP("email", "e", "", "User email")
	}
	usersDeleteCmd.Flags().Int("concurrency", 4, "Deletes in flight at once")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersUpdateCmd)
	usersCmd.AddCommand(usersDeleteCmd)

	routesCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	routesCmd.Flags().StringP("config", "c", "", "Path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
