package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brattlof/roster/internal/app/router"
	"github.com/brattlof/roster/internal/live"
	"github.com/brattlof/roster/internal/userview"
	"github.com/brattlof/roster/internal/web"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the routes the UI serves",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []web.Option{}
		if cfg.View.Live {
			opts = append(opts, web.WithHub(live.NewHub(nil)))
		}
		sessions := userview.NewSessions(nil, cfg.SessionTTL(), nil)
		table, err := web.New(sessions, opts...).Routes()
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		return printRoutes(cmd.OutOrStdout(), table.Routes(), jsonOutput)
	},
}

func printRoutes(out io.Writer, routes []*router.Route, asJSON bool) error {
	if asJSON {
		output := make([]map[string]string, len(routes))
		for i, r := range routes {
			output[i] = map[string]string{
				"method":  r.Method,
				"pattern": r.Pattern,
				"name":    r.Name,
				"type":    r.Type.String(),
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"routes": output})
	}

	fmt.Fprintf(out, "%d route(s):\n\n", len(routes))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATTERN\tTYPE\tNAME")
	fmt.Fprintln(w, "------\t-------\t----\t----")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Pattern, r.Type, r.Name)
	}
	return w.Flush()
}
