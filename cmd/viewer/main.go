package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-sysinfo/cmd/viewer/assets"
	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/config"
	"github.com/go-tangra/go-tangra-sysinfo/internal/logging"
	"github.com/go-tangra/go-tangra-sysinfo/internal/render"
	"github.com/go-tangra/go-tangra-sysinfo/internal/report"
	"github.com/go-tangra/go-tangra-sysinfo/internal/server"
	"github.com/go-tangra/go-tangra-sysinfo/internal/software"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
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
	outputFormat string
	categoryArg  string
	purgeDays    int
)

var rootCmd = &cobra.Command{
	Use:   "sysinfo-viewer",
	Short: "Sysinfo Viewer - stores and decodes software inventory from sysinfo agents",
	Long: `Sysinfo Viewer receives per-category software inventory from sysinfo agents
via gRPC, stores the payloads in a local SQLite database and decodes them
for the REST API and the command line.

Run without a subcommand to start the daemon (equivalent to 'serve').`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC collector and REST API",
	RunE:  runServe,
}

var showCmd = &cobra.Command{
	Use:   "show <hostname>",
	Short: "Decode and print the newest stored snapshot of a host",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var openCmd = &cobra.Command{
	Use:   "open <report-file>",
	Short: "Decode and print an offline report written by 'sysinfo-agent dump -o'",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List hosts with stored snapshots",
	RunE:  runHosts,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories this build can decode",
	RunE:  runCategories,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sysinfo-viewer %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge snapshots older than the specified number of days",
	RunE:  runPurge,
}

const serviceName = "TangraSysinfoViewer"

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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/viewer.yaml)")
	rootCmd.PersistentFlags().String("listen", "", "gRPC listen address (default :9550)")
	rootCmd.PersistentFlags().String("http-listen", "", "HTTP listen address for the REST API (default :9551)")
	rootCmd.PersistentFlags().String("database", "", "SQLite database path (default sysinfo.db)")
	rootCmd.PersistentFlags().String("client-secret", "", "secret for gRPC agents (empty = no auth)")
	rootCmd.PersistentFlags().String("api-secret", "", "secret for REST API clients (empty = no auth)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	for _, c := range []*cobra.Command{showCmd, openCmd, hostsCmd, categoriesCmd} {
		c.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format: table, json, yaml")
	}
	showCmd.Flags().StringVarP(&categoryArg, "category", "c", "", "show only this category (GUID or name)")
	purgeCmd.Flags().IntVar(&purgeDays, "days", 90, "purge snapshots older than this many days")

	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)

	rootCmd.AddCommand(serveCmd, showCmd, openCmd, hostsCmd, categoriesCmd, versionCmd, purgeCmd, serviceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRegistry builds the viewer-side registry. Categories have no
// enumerator here; only Parse is used.
func newRegistry() (*category.Registry, error) {
	return software.NewRegistry(software.Sources{})
}

func loadConfig(cmd *cobra.Command, extra ...logging.Sink) (*config.ViewerConfig, *zap.Logger, error) {
	cfg, err := config.LoadViewer(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.Setup(cfg.Log, extra...)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
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

	reg, err := newRegistry()
	if err != nil {
		return err
	}

	serve := func(ctx context.Context) error {
		tp, err := tracing.NewProvider(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer tp.Shutdown(context.Background())

		return server.Run(ctx, cfg, reg, assets.OpenApiData)
	}

	if winsvc.IsWindowsService() {
		return winsvc.RunService(serviceName, serve)
	}

	// Interactive mode: shut down on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx)
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, err := newRegistry()
	if err != nil {
		return err
	}
	v := viewer.New(reg, db)
	ctx := cmd.Context()
	hostname := args[0]

	if categoryArg == "" {
		rep, err := v.Report(ctx, hostname)
		if err != nil {
			return fmt.Errorf("load report for %s: %w", hostname, err)
		}
		return viewer.Write(os.Stdout, format, rep)
	}

	c, ok := reg.Find(categoryArg)
	if !ok {
		return fmt.Errorf("unknown category %q", categoryArg)
	}
	sec, err := v.Category(ctx, hostname, c.ID())
	if err != nil {
		return fmt.Errorf("load %s for %s: %w", categoryArg, hostname, err)
	}
	return viewer.Write(os.Stdout, format, &viewer.Report{Hostname: hostname, Sections: []viewer.Section{sec}})
}

func runOpen(_ *cobra.Command, args []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	b, err := report.Read(args[0])
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	rep, err := viewer.New(reg, nil).FromBundle(&b)
	if err != nil {
		return err
	}
	if format == render.FormatTable {
		fmt.Printf("%s (%s) collected %s\n\n", b.Hostname, b.HostID, b.CollectedAt.Local().Format(time.RFC1123))
	}
	return viewer.Write(os.Stdout, format, rep)
}

func runHosts(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	hosts, err := db.Hosts(cmd.Context())
	if err != nil {
		return err
	}
	if format != render.FormatTable {
		return render.WriteValue(os.Stdout, format, hosts)
	}

	t := render.Table{
		Name: "Hosts",
		Columns: []category.Column{
			{Title: "Hostname", Width: 150},
			{Title: "Host ID", Width: 300},
			{Title: "Last Collected", Width: 200},
			{Title: "Snapshots", Width: 64},
		},
		Rows: []category.Row{},
	}
	for _, h := range hosts {
		t.Rows = append(t.Rows, category.Row{Cells: []category.Cell{
			{Text: h.Hostname},
			{Text: h.HostID},
			{Text: h.LastCollectedAt.Local().Format(time.DateTime)},
			{Text: strconv.Itoa(h.Snapshots)},
		}})
	}
	return render.WriteTables(os.Stdout, format, []render.Table{t})
}

func runCategories(_ *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	return render.WriteTables(os.Stdout, format, []render.Table{categoryTable(reg)})
}

func categoryTable(reg *category.Registry) render.Table {
	t := render.Table{
		Name: "Categories",
		Columns: []category.Column{
			{Title: "Group", Width: 100},
			{Title: "Name", Width: 100},
			{Title: "GUID", Width: 300},
			{Title: "Status", Width: 100},
		},
		Rows: []category.Row{},
	}
	for _, c := range reg.All() {
		state := "collected"
		if category.IsIncomplete(c) {
			state = "not implemented"
		}
		t.Rows = append(t.Rows, category.Row{Icon: c.Icon(), Cells: []category.Cell{
			{Text: reg.GroupOf(c.ID())},
			{Text: c.Name()},
			{Text: string(c.ID())},
			{Text: state},
		}})
	}
	return t
}

func runServiceInstall(_ *cobra.Command, _ []string) error {
	svcArgs := []string{"serve"}
	if cfgFile != "" {
		svcArgs = append(svcArgs, "--config", cfgFile)
	}

	if err := winsvc.Install(winsvc.Spec{
		Name:        serviceName,
		DisplayName: "Tangra Sysinfo Viewer",
		Description: "Receives software inventory from sysinfo agents via gRPC and stores it locally.",
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

func runPurge(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Purge(cmd.Context(), time.Duration(purgeDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	fmt.Printf("Purged %d snapshots older than %d days\n", n, purgeDays)
	return nil
}
