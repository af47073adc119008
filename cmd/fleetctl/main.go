// Command fleetctl runs route efficiency evaluations and what-if scenarios
// against a route file, the database, or the built-in demo fleet.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schoolbus/internal/buildinfo"
	"schoolbus/internal/config"
	"schoolbus/internal/store"
)

var (
	logger *zap.Logger

	routesFile        string
	districtID        string
	modelPath         string
	databaseURL       string
	output            string
	verbose           bool
	timeout           time.Duration
	parallelThreshold int
	workers           int
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "School bus route efficiency and consolidation scenarios",
	Long: `fleetctl grades routes, ranks fleet inefficiencies, simulates merges and
runs consolidation and bell-time-shift scenarios.

Routes come from --routes (a JSON or YAML file), from --db, or from the demo
fleet when neither is given.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		l, err := config.NewLogger(level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
	},
}

func init() {
	_ = config.LoadDotEnv()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&routesFile, "routes", "r", "", "Route file (JSON or YAML)")
	pf.StringVarP(&districtID, "district", "d", store.DemoDistrict, "District id")
	pf.StringVar(&modelPath, "model", os.Getenv("MODEL_CONFIG"), "Calibration YAML file")
	pf.StringVar(&databaseURL, "db", os.Getenv("DATABASE_URL"), "Postgres DSN")
	pf.StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")
	pf.IntVar(&parallelThreshold, "parallel-threshold", 500, "Fleet size from which detection runs in parallel")
	pf.IntVar(&workers, "workers", 0, "Detection workers (0 means GOMAXPROCS)")

	scenarioCmd.AddCommand(consolidationCmd)
	scenarioCmd.AddCommand(bellShiftCmd)

	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importRoutesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
