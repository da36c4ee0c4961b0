package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/config"
	"github.com/go-tangra/go-tangra-sysinfo/internal/daemon"
	"github.com/go-tangra/go-tangra-sysinfo/internal/hostid"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logging"
	"github.com/go-tangra/go-tangra-sysinfo/internal/render"
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
	"github.com/go-tangra/go-tangra-sysinfo/internal/software"
	"github.com/go-tangra/go-tangra-sysinfo/internal/tracing"
	"github.com/go-tangra/go-tangra-sysinfo/internal/viewer"
	"github.com/go-tangra/go-tangra-sysinfo/internal/winsvc"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var (
	cfgFile      string
	outputFile   string
	outputFormat string
	dumpOnly     []string
)

var rootCmd = &cobra.Command{
	Use:   "sysinfo-agent",
	Short: "Sysinfo Agent - collects software inventory and reports it to a sysinfo viewer",
	Long: `Sysinfo Agent enumerates installed programs, services, drivers and running
processes on this host and submits them to a sysinfo viewer over gRPC. It then
keeps a command stream open so the viewer can ask for a refresh.

Run without a subcommand to start the agent (equivalent to 'run').`,
	SilenceUsage: true,
	RunE:         runAgent,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a snapshot and wait for refresh commands",
	RunE:  runAgent,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Collect locally and print the result, or write an offline report with -o",
	RunE:  runDump,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories this agent collects",
	RunE:  runCategories,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sysinfo-agent %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

const serviceName = "TangraSysinfoAgent"

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage Windows service installation",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install as a Windows service",
	RunE:  runServiceInstall,
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the Windows service",
	RunE:  runServiceUninstall,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/agent.yaml)")
	rootCmd.PersistentFlags().String("collector", "", "viewer gRPC address (default localhost:9550)")
	rootCmd.PersistentFlags().String("client-secret", "", "shared secret expected by the viewer")
	rootCmd.PersistentFlags().String("client-id", "", "agent identity (default: SMBIOS system UUID or hostname)")
	rootCmd.PersistentFlags().Int("concurrency", 0, "categories collected in parallel (0 = all)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	dumpCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write a CBOR report file instead of printing")
	dumpCmd.Flags().StringSliceVar(&dumpOnly, "category", nil, "collect only these categories (GUID or name)")
	for _, c := range []*cobra.Command{dumpCmd, categoriesCmd} {
		c.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format: table, json, yaml")
	}

	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)

	rootCmd.AddCommand(runCmd, dumpCmd, categoriesCmd, versionCmd, serviceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, extra ...logging.Sink) (*config.AgentConfig, *zap.Logger, error) {
	cfg, err := config.LoadAgent(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.Setup(cfg.Log, extra...)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, logger, nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	var extra []logging.Sink
	if winsvc.IsWindowsService() {
		if w, err := winsvc.EventLog(serviceName); err == nil {
			extra = append(extra, w)
		}
	}
	cfg, logger, err := loadConfig(cmd, extra...)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := software.NewRegistry(software.HostSources())
	if err != nil {
		return err
	}
	id, err := hostid.Detect()
	if err != nil {
		return err
	}
	zap.L().Info("host identified",
		zap.String("hostname", id.Hostname),
		zap.String("host_id", id.ID()),
		zap.String("product", id.Product),
	)

	run := func(ctx context.Context) error {
		tp, err := tracing.NewProvider(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer tp.Shutdown(context.Background())

		return daemon.Run(ctx, daemon.Config{
			CollectorAddr: cfg.CollectorAddr,
			ClientSecret:  cfg.ClientSecret,
			ClientID:      cfg.ClientID,
			Version:       version,
			Registry:      reg,
			Identity:      id,
			Concurrency:   cfg.Concurrency,
		})
	}

	if winsvc.IsWindowsService() {
		return winsvc.RunService(serviceName, run)
	}

	// Interactive mode: shut down on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx)
}

func runDump(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := software.NewRegistry(software.HostSources())
	if err != nil {
		return err
	}
	cats, err := selectCategories(reg, dumpOnly)
	if err != nil {
		return err
	}
	id, err := hostid.Detect()
	if err != nil {
		return err
	}

	at := time.Now()
	results := collector.Collect(cmd.Context(), cats, collector.Options{Concurrency: cfg.Concurrency})
	for _, r := range collector.Failed(results) {
		zap.L().Warn("category not collected", zap.String("category", r.Name), zap.Error(r.Err))
	}
	b := report.FromResults(id.Hostname, id.ID(), at, results)

	if outputFile != "" {
		if err := report.Write(outputFile, b); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "report written to %s\n", outputFile)
		return nil
	}

	rep, err := viewer.New(reg, nil).FromBundle(&b)
	if err != nil {
		return err
	}
	return viewer.Write(os.Stdout, format, rep)
}

func selectCategories(reg *category.Registry, names []string) ([]category.Category, error) {
	if len(names) == 0 {
		return reg.All(), nil
	}
	out := make([]category.Category, 0, len(names))
	for _, n := range names {
		c, ok := reg.Find(n)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

func runCategories(_ *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	reg, err := software.NewRegistry(software.HostSources())
	if err != nil {
		return err
	}
	if format != render.FormatTable {
		return render.WriteValue(os.Stdout, format, reg.Descriptors())
	}

	t := render.Table{
		Name: "Categories",
		Columns: []category.Column{
			{Title: "Name", Width: 100},
			{Title: "GUID", Width: 300},
			{Title: "Icon", Width: 120},
		},
		Rows: []category.Row{},
	}
	for _, c := range reg.All() {
		name := c.Name()
		if category.IsIncomplete(c) {
			name += " (not implemented)"
		}
		t.Rows = append(t.Rows, category.Row{Icon: c.Icon(), Cells: []category.Cell{
			{Text: name},
			{Text: string(c.ID())},
			{Text: string(c.Icon())},
		}})
	}
	return render.WriteTables(os.Stdout, format, []render.Table{t})
}

func runServiceInstall(_ *cobra.Command, _ []string) error {
	svcArgs := []string{"run"}
	if cfgFile != "" {
		svcArgs = append(svcArgs, "--config", cfgFile)
	}

	if err := winsvc.Install(winsvc.Spec{
		Name:        serviceName,
		DisplayName: "Tangra Sysinfo Agent",
		Description: "Collects software inventory and reports it to the sysinfo viewer.",
		Args:        svcArgs,
	}); err != nil {
		return err
	}

	fmt.Printf("Service %s installed successfully\n", serviceName)
	return nil
}

func runServiceUninstall(_ *cobra.Command, _ []string) error {
	if err := winsvc.Uninstall(serviceName); err != nil {
		return err
	}
	fmt.Printf("Service %s uninstalled successfully\n", serviceName)
	return nil
}
