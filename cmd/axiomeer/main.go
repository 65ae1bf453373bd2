package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/config"
	"github.com/ujjwalredd/Axiomeer/pkg/crypto"
	"github.com/ujjwalredd/Axiomeer/pkg/evidence"
	"github.com/ujjwalredd/Axiomeer/pkg/marketplace"
	"github.com/ujjwalredd/Axiomeer/pkg/ratelimit"
	"github.com/ujjwalredd/Axiomeer/pkg/router"
	"github.com/ujjwalredd/Axiomeer/pkg/server"
)

var (
	configFile string
	debugFlag  bool
	jsonFlag   bool
	aliases    *config.ModelAliases
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "axiomeer",
		Short: "Marketplace that routes tasks to data apps and verifies their evidence",
		Long: `Axiomeer ranks catalog apps for a task, lets an LLM sales agent pick
	among the best candidates, executes the chosen provider and records a
	receipt of every run. Trust scores are derived from that run history.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.axiomeer/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable development logging")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "print raw JSON")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(shopCmd())
	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(appsCmd())
	rootCmd.AddCommand(trustCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(bootstrapCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(modelsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	var skipBootstrap bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipBootstrap {
				if _, err := a.svc.Bootstrap(cmd.Context(), a.cfg.ManifestsDir); err != nil {
					return fmt.Errorf("failed to bootstrap catalog: %w", err)
				}
			}

			opts := []server.Option{server.WithLogger(a.logger.Named("http"))}
			if a.cfg.RateLimit.Enabled {
				opts = append(opts, server.WithRateLimiter(ratelimit.New(a.cfg.RateLimit.PerHour)))
				a.logger.Info("rate limiting enabled", zap.Int("per_hour", a.cfg.RateLimit.PerHour))
			}
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			return server.New(a.svc, opts...).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&skipBootstrap, "no-bootstrap", false, "do not load manifests on startup")

	return cmd
}

func shopCmd() *cobra.Command {
	var (
		caps      []string
		freshness string
		maxLat    int
		maxCost   float64
		citations bool
		clientID  string
	)

	cmd := &cobra.Command{
		Use:   "shop [task]",
		Short: "Recommend apps for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req := marketplace.ShopRequest{
				Task:                 args[0],
				RequiredCapabilities: caps,
				ClientID:             clientID,
				Constraints: router.Constraints{
					CitationsRequired: citations,
					Freshness:         catalog.Freshness(freshness),
				},
			}
			if cmd.Flags().Changed("max-latency") {
				req.Constraints.MaxLatencyMs = &maxLat
			}
			if cmd.Flags().Changed("max-cost") {
				req.Constraints.MaxCostUSD = &maxCost
			}

			resp, err := a.svc.Shop(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			return printShop(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringSliceVar(&caps, "cap", nil, "required capability (repeatable)")
	cmd.Flags().StringVar(&freshness, "freshness", "", "required freshness (static, daily, realtime)")
	cmd.Flags().IntVar(&maxLat, "max-latency", 0, "maximum estimated latency in ms")
	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "maximum estimated cost in USD")
	cmd.Flags().BoolVar(&citations, "citations", false, "only consider apps that return citations")
	cmd.Flags().StringVar(&clientID, "client", "", "client id for conversation memory")

	return cmd
}

func executeCmd() *cobra.Command {
	var (
		task        string
		inputs      []string
		noCitations bool
		clientID    string
	)

	cmd := &cobra.Command{
		Use:   "execute [app_id]",
		Short: "Run an app and validate its evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			require := !noCitations
			resp, err := a.svc.Execute(cmd.Context(), marketplace.ExecuteRequest{
				AppID:            args[0],
				Task:             task,
				Inputs:           parsed,
				RequireCitations: &require,
				ClientID:         clientID,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("run %d failed: %s", resp.RunID, strings.Join(resp.ValidationErrors, "; "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "task description, used for parameter extraction")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "provider input as key=value (repeatable)")
	cmd.Flags().BoolVar(&noCitations, "no-citations", false, "do not require citations")
	cmd.Flags().StringVar(&clientID, "client", "", "client id for conversation memory")

	return cmd
}

func appsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List catalog apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			apps, err := a.svc.Apps(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), apps)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCAPABILITIES\tFRESHNESS\tCITES\tLATENCY\tCOST")
			for _, e := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%dms\t$%.4f\n", e.ID,
					strings.Join(catalog.Strings(e.Capabilities), ","),
					e.Freshness, e.CitationsSupported, e.LatencyEstMs, e.CostEstUSD)
			}
			return w.Flush()
		},
	}
}

func trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust",
		Short: "Show trust scores derived from run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snaps, err := a.svc.Trust(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), snaps)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "APP\tRUNS\tSUCCESS\tCITATIONS\tP95\tTRUST")
			for _, s := range snaps {
				p95 := "-"
				if s.P95LatencyMs != nil {
					p95 = strconv.Itoa(*s.P95LatencyMs) + "ms"
				}
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%s\t%.3f\n",
					s.AppID, s.TotalRuns, s.SuccessRate, s.CitationPassRate, p95, s.TrustScore)
			}
			return w.Flush()
		},
	}
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.svc.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAPP\tOK\tLATENCY\tCREATED\tERRORS")
			for _, r := range runs {
				lat := "-"
				if r.LatencyMs != nil {
					lat = strconv.Itoa(*r.LatencyMs) + "ms"
				}
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\n", r.ID, r.AppID, r.OK, lat,
					r.CreatedAt.Format("2006-01-02 15:04:05"), strings.Join(r.ValidationErrors, "; "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", marketplace.DefaultRunsLimit, "maximum runs to show")

	return cmd
}

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap [dir]",
		Short: "Load app manifests into the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.ManifestsDir
			if len(args) == 1 {
				dir = args[0]
			}
			n, err := a.svc.Bootstrap(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d apps from %s\n", n, dir)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var keyID string
	cmd := &cobra.Command{
		Use:   "verify [run_id]",
		Short: "Check a stored receipt against its output blob and signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.ReceiptsDir == "" {
				return fmt.Errorf("receipts_dir is not configured")
			}
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || runID <= 0 {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			r, err := evidence.ReadReceipt(cfg.ReceiptsDir, runID)
			if err != nil {
				return err
			}

			if keyID == "" {
				keyID = cfg.ReceiptsKeyID
			}
			var pub ed25519.PublicKey
			if keyID != "" {
				if pub, err = crypto.LoadPublicKey(filepath.Join(cfg.ConfigDir, "keys"), keyID); err != nil {
					return err
				}
			}
			if err := evidence.VerifyStored(cfg.ReceiptsDir, r, pub); err != nil {
				return fmt.Errorf("run %d: %w", runID, err)
			}
			signed := "unsigned"
			if pub != nil {
				signed = "signature ok"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %d verified (%s)\n", runID, signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyID, "key", "", "signing key id (default receipts_key_id)")
	return cmd
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List LLM backends, models, and aliases",
		Long: `Lists backends and their known models.

	Use --resolve to show aliases and what they resolve to.
	Use --validate to check the configured router and sales agent models.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()

			if resolveFlag {
				return showAliases(out)
			}
			if validateFlag {
				errs := aliases.ValidateLLM(cfg.LLM, cfg.SalesAgent)
				for _, e := range errs {
					fmt.Fprintf(out, "  %v\n", e)
				}
				if len(errs) > 0 {
					return fmt.Errorf("%d model problems", len(errs))
				}
				fmt.Fprintf(out, "%s models OK\n", cfg.LLM.Backend)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tMODELS\tSTATUS")
			for _, backend := range aliases.ListProviders() {
				status := "no key"
				if cfg.HasAdapter(backend) {
					status = "ready"
				}
				if backend == cfg.LLM.Backend {
					status += " (active)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", backend, strings.Join(aliases.Providers[backend], ", "), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check configured models against the provider lists")

	return cmd
}

func showAliases(out io.Writer) error {
	all := aliases.ListAliases()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, all[name])
	}
	return w.Flush()
}

func printShop(out io.Writer, resp *marketplace.ShopResponse) error {
	fmt.Fprintf(out, "Status: %s\n", resp.Status)
	if len(resp.RequiredCapabilities) > 0 {
		fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(resp.RequiredCapabilities, ", "))
	}
	fmt.Fprintf(out, "Sales agent: %s\n", resp.SalesAgent.Summary)
	if resp.Status != marketplace.StatusOK {
		for _, line := range resp.Explanation {
			fmt.Fprintf(out, "  - %s\n", line)
		}
		return nil
	}
	fmt.Fprintf(out, "Final choice: %s\n\n", resp.SalesAgent.FinalChoice)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tSCORE\tTRUST\tRATIONALE\tTRADEOFF")
	for _, r := range resp.Recommendations {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%s\t%s\n", r.AppID, r.Score, r.TrustScore, r.Rationale, r.Tradeoff)
	}
	return w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInputs turns key=value flags into provider inputs. Values that parse
// as JSON (numbers, booleans, objects) keep their type.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q, want key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = value
		}
	}
	return out, nil
}
