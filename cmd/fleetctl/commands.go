package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"schoolbus/internal/auth"
	"schoolbus/internal/engine"
	"schoolbus/internal/model"
	"schoolbus/internal/store"
)

var (
	scenarioName   string
	scenarioStatus string
	targetPct      float64
	shiftMinutes   int
	severityFilter string
	migrationsDir  string

	tokenSecret string
	tokenRole   string
	tokenUser   string
	tokenTTL    time.Duration
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade every active route by utilization",
	Args:  cobra.NoArgs,
	RunE:  runGrade,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List inefficiency findings, high severity first",
	Args:  cobra.NoArgs,
	RunE:  runDetect,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the fleet report",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var mergeCmd = &cobra.Command{
	Use:   "merge ROUTE_ID ROUTE_ID [ROUTE_ID...]",
	Short: "Simulate folding routes into one",
	RunE:  runMerge,
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a what-if scenario and save it",
	Long: `Run a what-if scenario over the active fleet and save it.

Available subcommands:
  consolidation - eliminate routes below a target utilization
  bell-shift    - absorb routes by shifting bell times`,
}

var consolidationCmd = &cobra.Command{
	Use:   "consolidation",
	Short: "Consolidate routes below --target percent utilization",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, model.ConsolidationParams{TargetUtilizationPct: targetPct})
	},
}

var bellShiftCmd = &cobra.Command{
	Use:   "bell-shift",
	Short: "Estimate routes absorbed by shifting bells --minutes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, model.BellTimeShiftParams{ShiftMinutes: shiftMinutes})
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [ID]",
	Short: "List saved scenarios, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenarios,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations to --db",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var importRoutesCmd = &cobra.Command{
	Use:   "import-routes FILE",
	Short: "Upsert a route file into --db for the district",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportRoutes,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HS256 bearer token for the district",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	detectCmd.Flags().StringVar(&severityFilter, "severity", "", "Only show high or medium findings")

	scenarioCmd.PersistentFlags().StringVarP(&scenarioName, "name", "n", "", "Scenario name (required)")
	scenarioCmd.PersistentFlags().StringVar(&scenarioStatus, "status", string(model.ScenarioDraft), "draft or active")
	_ = scenarioCmd.MarkPersistentFlagRequired("name")
	consolidationCmd.Flags().Float64Var(&targetPct, "target", 65, "Target utilization percent")
	bellShiftCmd.Flags().IntVar(&shiftMinutes, "minutes", 15, "Bell shift in minutes")

	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "db/migrations", "Migrations directory")

	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "HMAC secret (default AUTH_HMAC_SECRET)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "planner", "Role claim")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Subject claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

func runGrade(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		grades, err := svc.GradeRoutes(ctx, districtID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), grades)
	})
}

func runDetect(cmd *cobra.Command, args []string) error {
	sev := engine.Severity(strings.ToLower(severityFilter))
	if sev != "" && sev != engine.SeverityHigh && sev != engine.SeverityMedium {
		return fmt.Errorf("--severity must be high or medium, got %q", severityFilter)
	}
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		findings, err := svc.DetectInefficiencies(ctx, districtID)
		if err != nil {
			return err
		}
		if sev != "" {
			kept := findings[:0]
			for _, f := range findings {
				if f.Severity == sev {
					kept = append(kept, f)
				}
			}
			findings = kept
		}
		return render(cmd.OutOrStdout(), findings)
	})
}

func runSummary(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		rep, err := svc.Evaluate(ctx, districtID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), rep)
	})
}

func runMerge(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		sim, err := svc.SimulateMerge(ctx, districtID, args)
		if err != nil {
			return err
		}
		warnings := sim.Warnings()
		if warnings == nil {
			warnings = []string{}
		}
		for _, w := range warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+w)
		}
		return render(cmd.OutOrStdout(), map[string]any{
			"simulation": sim,
			"warnings":   warnings,
		})
	})
}

func runScenario(cmd *cobra.Command, params model.ScenarioParams) error {
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		out, err := svc.RunScenario(ctx, engine.ScenarioRequest{
			DistrictID: districtID,
			Name:       scenarioName,
			CreatedBy:  "fleetctl",
			Status:     model.ScenarioStatus(scenarioStatus),
			Params:     params,
		})
		if err != nil {
			return err
		}
		resp := map[string]any{
			"scenario":  out.Scenario,
			"persisted": out.Persisted,
		}
		if out.StorageErr != nil {
			resp["warnings"] = []string{"scenario not saved: " + out.StorageErr.Error()}
		}
		return render(cmd.OutOrStdout(), resp)
	})
}

func runScenarios(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *engine.Service) error {
		if len(args) == 1 {
			sc, err := svc.GetScenario(ctx, districtID, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), sc)
		}
		list, err := svc.ListScenarios(ctx, districtID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), list)
	})
}

var errNoDatabase = errors.New("--db or DATABASE_URL is required")

func openPostgres() (*store.Postgres, error) {
	if databaseURL == "" {
		return nil, errNoDatabase
	}
	return store.NewPostgres(databaseURL)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	pg, err := openPostgres()
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()
	if err := pg.MigrateDir(migrationsDir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrations in %s applied\n", migrationsDir)
	return nil
}

func runImportRoutes(cmd *cobra.Command, args []string) error {
	d, routes, err := loadRoutesFile(args[0])
	if err != nil {
		return err
	}
	if d != "" && !rootFlagChanged("district") {
		districtID = d
	}
	pg, err := openPostgres()
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := pg.PutRoutes(ctx, districtID, routes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d routes into %s\n", len(routes), districtID)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("AUTH_HMAC_SECRET")
	}
	if secret == "" {
		return errors.New("--secret or AUTH_HMAC_SECRET is required")
	}
	claims := map[string]any{
		claimName("AUTH_DISTRICT_CLAIM", "district"): districtID,
		claimName("AUTH_ROLE_CLAIM", "role"):         strings.ToLower(tokenRole),
		"exp":                                        time.Now().Add(tokenTTL).Unix(),
	}
	if tokenUser != "" {
		claims["sub"] = tokenUser
	}
	tok, err := auth.SignHS256([]byte(secret), claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func claimName(env, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return fallback
}
