package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metorial/minidash/internal/cli"
	"github.com/metorial/minidash/internal/discovery"
)

var (
	serverURL  string
	consulAddr string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dashctl",
	Short: "CLI for the minidash API",
	Long: `dashctl queries a running minidash server.

It prints system history, process insights, network connections and the
openclaw agent's status, token usage and cron jobs.`,
	SilenceUsage: true,
}

func newClient() (*cli.Client, error) {
	if consulAddr != "" {
		url, err := discovery.Lookup(consulAddr, "minidash")
		if err != nil {
			return nil, err
		}
		return cli.NewClient(url), nil
	}
	return cli.NewClient(serverURL), nil
}

// run fetches data and prints it as JSON or through table.
func run(fetch func(*cli.Client) (map[string]interface{}, error), table func(data map[string]interface{}) error) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	data, err := fetch(client)
	if err != nil {
		return err
	}

	if outputJSON {
		return cli.FormatJSON(os.Stdout, data)
	}
	return table(data)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and dependency health",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Health, func(data map[string]interface{}) error {
			return cli.FormatHealth(os.Stdout, data)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show openclaw agent status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Status, func(data map[string]interface{}) error {
			return cli.FormatStatus(os.Stdout, data)
		})
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Show estimated token usage and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Tokens, func(data map[string]interface{}) error {
			return cli.FormatTokens(os.Stdout, data)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show system metric history",
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, _ := cmd.Flags().GetString("range")
		return run(func(c *cli.Client) (map[string]interface{}, error) {
			return c.History(rng)
		}, func(data map[string]interface{}) error {
			return cli.FormatHistory(os.Stdout, data)
		})
	},
}

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "Show top processes and anomalies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Processes, func(data map[string]interface{}) error {
			return cli.FormatProcesses(os.Stdout, data)
		})
	},
}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "List openclaw cron jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Cron, func(data map[string]interface{}) error {
			return cli.FormatCron(os.Stdout, data)
		})
	},
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List established outbound connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run((*cli.Client).Connections, func(data map[string]interface{}) error {
			return cli.FormatConnections(os.Stdout, data)
		})
	},
}

func init() {
	defaultServerURL := os.Getenv("MINIDASH_URL")
	if defaultServerURL == "" {
		defaultServerURL = "http://localhost:8888"
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "minidash server URL")
	rootCmd.PersistentFlags().StringVar(&consulAddr, "consul", "", "Consul agent address; finds the server by service name instead of --server")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	historyCmd.Flags().StringP("range", "r", "1h", "Time range: 1h, 8h, 24h, 7d or 30d")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(processesCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(connectionsCmd)
}
