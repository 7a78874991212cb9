package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/consts"
	"github.com/dyike/forexcell/internal/agents"
	"github.com/dyike/forexcell/internal/display"
	"github.com/dyike/forexcell/internal/servers"
	"github.com/dyike/forexcell/internal/service"
	"github.com/dyike/forexcell/internal/workflow"
	"github.com/dyike/forexcell/models"
)

func newBuildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build <tool.yaml>",
		Short: "Generate the parameter and server files for a tool definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := servers.Build(args[0], force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range res.Written {
				display.Success(out, "Wrote "+p)
			}
			for _, p := range res.Skipped {
				display.Warning(out, "Kept existing "+p+" (use --force to overwrite)")
			}
			display.Info(out, fmt.Sprintf("Tool %s is ready", res.Tool))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite generated files")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tool servers and workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			found, err := servers.Discover(cfg.ServersDir)
			if err != nil {
				return err
			}
			display.Header(out, "Tool servers")
			if len(found) == 0 {
				display.Info(out, "No tool servers in "+cfg.ServersDir)
			}
			rows := make([][]string, 0, len(found))
			for _, name := range servers.SortedNames(found) {
				def, err := servers.LoadDefinition(found[name])
				if err != nil {
					rows = append(rows, []string{name, "-", "invalid: " + err.Error()})
					continue
				}
				rows = append(rows, []string{name, strings.Join(def.Methods, ", "), def.Description})
			}
			if len(rows) > 0 {
				display.Table(out, []string{"Name", "Methods", "Description"}, rows)
			}

			flows, err := workflow.Discover(cfg.WorkflowsDir)
			if err != nil {
				return err
			}
			display.Header(out, "Workflows")
			if len(flows) == 0 {
				display.Info(out, "No workflows in "+cfg.WorkflowsDir)
				return nil
			}
			names := make([]string, 0, len(flows))
			for name := range flows {
				names = append(names, name)
			}
			sort.Strings(names)
			rows = rows[:0]
			for _, name := range names {
				desc := ""
				if wf, err := workflow.Load(flows[name]); err == nil {
					desc = wf.Description
				}
				rows = append(rows, []string{name, desc})
			}
			display.Table(out, []string{"Name", "Description"}, rows)
			return nil
		},
	}
}

func newAgentsCmd() *cobra.Command {
	var initAll bool
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the available agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg, service.WithoutStore())
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			failed := map[string]error{}
			if initAll {
				failed = svc.Agents.InitAll(cmd.Context())
			}
			descs := svc.Agents.Descriptions()
			rows := make([][]string, 0, len(descs))
			for _, name := range svc.Agents.Names() {
				status := "available"
				if initAll {
					status = "ready"
					if err := failed[name]; err != nil {
						status = "failed: " + err.Error()
					}
				}
				rows = append(rows, []string{name, descs[name], status})
			}
			display.Table(out, []string{"Agent", "Description", "Status"}, rows)
			if !svc.Analyzer.Enabled() {
				display.Warning(out, "No LLM key configured, agents use rule-based analysis")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&initAll, "init", false, "Build every agent and report failures")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "plan <query>",
		Short: "Show how a request would be split across agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg, service.WithoutStore())
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Agents.Execute(cmd.Context(), agents.PlannerName, agents.Task{
				"query":        strings.Join(args, " "),
				"target_agent": target,
			})
			if err != nil {
				return err
			}
			var plan models.ExecutionPlan
			if err := models.FromMap(res, &plan); err != nil {
				return fmt.Errorf("decode plan: %w", err)
			}
			printPlan(cmd, &plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "agent", "", "Route every task to this agent")
	return cmd
}

func printPlan(cmd *cobra.Command, plan *models.ExecutionPlan) {
	out := cmd.OutOrStdout()
	display.Header(out, "Plan "+plan.PlanID)
	display.KeyValues(out, [][2]string{
		{"Query", plan.OrigQuery},
		{"Adequate", strconv.FormatBool(plan.Adequate)},
		{"Reason", plan.Reason},
	})
	if !plan.Adequate {
		display.Warning(out, plan.GuidanceMessage)
		return
	}
	rows := make([][]string, 0, len(plan.Tasks))
	for _, t := range plan.Tasks {
		rows = append(rows, []string{t.ID, t.AgentName, t.Title, t.Status})
	}
	display.Table(out, []string{"Task", "Agent", "Title", "Status"}, rows)
}

func newAnalyzeCmd() *cobra.Command {
	var pair string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Run the built-in multi-agent analysis for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg, service.WithoutStore())
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			var progress chan string
			done := make(chan struct{})
			if quiet {
				close(done)
			} else {
				progress = make(chan string, 64)
				go func() {
					defer close(done)
					for line := range progress {
						fmt.Fprintln(cmd.ErrOrStderr(), line)
					}
				}()
			}
			state, err := svc.AnalyzeWithProgress(cmd.Context(), strings.ToUpper(pair), strings.Join(args, " "), progress)
			if progress != nil {
				close(progress)
			}
			<-done
			if err != nil {
				return err
			}
			display.KeyValues(out, [][2]string{
				{"Pair", state.Pair},
				{"Visited", strings.Join(state.Visited, " → ")},
				{"Skipped", strings.Join(state.Skipped, ", ")},
			})
			for node, msg := range state.Errors {
				display.Warning(out, node+": "+msg)
			}
			fmt.Fprintln(out, workflow.FormatData("Analysis", state.Report))
			return nil
		},
	}
	cmd.Flags().StringVarP(&pair, "currency-pair", "c", "", "Currency pair (defaults to the one in the question)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "Q", false, "Hide node progress")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var reports bool
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past workflow runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			out := cmd.OutOrStdout()

			if reports {
				page, err := svc.ListReports("", limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(page.Items))
				for _, it := range page.Items {
					rows = append(rows, []string{it.Name, it.Path})
				}
				display.Table(out, []string{"Report", "Path"}, rows)
				return nil
			}
			if svc.Store == nil {
				return errors.New("run store is not available")
			}
			if len(args) == 1 {
				return showRun(cmd.Context(), cmd, svc, args[0])
			}
			runs, err := svc.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					shortID(r.RunID), r.Workflow, r.Status,
					humanize.Time(r.StartedAt),
					fmt.Sprintf("%d/%d", r.Summary.Successful, r.Summary.Total),
				})
			}
			display.Table(out, []string{"Run", "Workflow", "Status", "Started", "Steps"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	cmd.Flags().BoolVar(&reports, "reports", false, "List markdown reports instead of stored runs")
	return cmd
}

func showRun(ctx context.Context, cmd *cobra.Command, svc *service.Service, id string) error {
	run, err := svc.Store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	display.RunSummary(cmd.OutOrStdout(), run)
	display.Stored(cmd.OutOrStdout(), run.Stored)
	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				masked := cfg
				masked.OpenAIAPIKey = mask(cfg.OpenAIAPIKey)
				masked.DeepSeekAPIKey = mask(cfg.DeepSeekAPIKey)
				masked.TwelveDataAPIKey = mask(cfg.TwelveDataAPIKey)
				masked.AlphaVantageAPIKey = mask(cfg.AlphaVantageAPIKey)
				data, err := json.MarshalIndent(masked, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			showConfig(cmd, cfg)
			return nil
		},
	}
	showCmd.Flags().Bool("json", false, "Print as JSON with keys masked")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			display.Success(out, "Configuration is valid")
			if cfg.ActiveAPIKey() == "" {
				display.Warning(out, "No "+cfg.LLMProvider+" API key set, LLM features are disabled")
			}
			if cfg.TwelveDataAPIKey == "" {
				display.Warning(out, "No Twelve Data key set, market data falls back to "+cfg.MarketDataProvider)
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, validateCmd)
	return configCmd
}

func showConfig(cmd *cobra.Command, cfg config.Config) {
	out := cmd.OutOrStdout()
	display.Header(out, "Configuration")
	display.KeyValues(out, [][2]string{
		{"Workflows", cfg.WorkflowsDir},
		{"Servers", cfg.ServersDir},
		{"Results", cfg.ResultsDir},
		{"Database", cfg.DBPath},
		{"LLM provider", cfg.LLMProvider},
		{"Deep model", cfg.DeepThinkLLM},
		{"Quick model", cfg.QuickThinkLLM},
		{"LLM key", display.Check(cfg.ActiveAPIKey() != "")},
		{"Market data", cfg.MarketDataProvider},
		{"Twelve Data key", display.Check(cfg.TwelveDataAPIKey != "")},
		{"Alpha Vantage key", display.Check(cfg.AlphaVantageAPIKey != "")},
		{"Cache", fmt.Sprintf("enabled=%t ttl=%s", cfg.CacheEnabled, cfg.CacheTTL())},
		{"Server ports", strconv.Itoa(cfg.ServerPortStart) + "-" + strconv.Itoa(cfg.ServerPortEnd)},
		{"API address", cfg.APIAddr},
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mask(key string) string {
	if len(key) <= 8 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", consts.AppName, consts.Version)
			fmt.Fprintln(cmd.OutOrStdout(), consts.Description)
		},
	}
}
