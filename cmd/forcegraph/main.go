package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
	"github.com/san-kum/forcegraph/internal/experiment"
	"github.com/san-kum/forcegraph/internal/export"
	"github.com/san-kum/forcegraph/internal/metrics"
	"github.com/san-kum/forcegraph/internal/optim"
	"github.com/san-kum/forcegraph/internal/storage"
	"github.com/san-kum/forcegraph/internal/viz"
)

var (
	dataDir     string
	verbose     bool
	configFile  string
	profile     string
	simulator   string
	renderer    string
	datasetRef  string
	ticks       int
	width       int
	height      int
	seed        int64
	theme       string
	colored     bool
	output      string
	settingsArg string
	metricsAddr string
	noSave      bool
	exportFmt   string
	exportW     int
	exportH     int
	paramsFmt   string
	algorithm   string
	axes        []string
	workers     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "forcegraph",
		Short:         "force-directed graph layout lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".forcegraph", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a layout and save the result",
		Args:  cobra.NoArgs,
		RunE:  runLayout,
	}
	addLayoutFlags(runCmd)
	runCmd.Flags().StringVar(&renderer, "renderer", config.DefaultRenderer, "renderer (terminal, svg, png, null)")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "image file for svg and png renderers")
	runCmd.Flags().StringVar(&settingsArg, "settings", "", "settings file, reloaded while running")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a layout with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addLayoutFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [profile] [profile] ...",
		Short: "compare layout profiles on the same dataset",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareProfiles,
	}
	addLayoutFlags(compareCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search layout sliders for the most settled layout",
		Args:  cobra.NoArgs,
		RunE:  tuneLayout,
	}
	addLayoutFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&algorithm, "algorithm", config.ForceAtlas2, "algorithm whose sliders are swept")
	tuneCmd.Flags().StringArrayVar(&axes, "axis", nil, "swept slider as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().IntVar(&workers, "workers", 4, "concurrent trials")
	_ = tuneCmd.MarkFlagRequired("axis")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot layout movement of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored layout as svg or png",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFmt, "format", string(export.SVG), "image format (svg, png)")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <run_id>.<format>)")
	exportCmd.Flags().IntVar(&exportW, "width", 800, "image width")
	exportCmd.Flags().IntVar(&exportH, "height", 800, "image height")
	exportCmd.Flags().StringVar(&theme, "theme", viz.ThemeNight.Name, "color theme")

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "list layout profiles",
		RunE:  listProfiles,
	}

	paramsCmd := &cobra.Command{
		Use:   "params [profile]",
		Short: "print the client parameters of a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printParams,
	}
	paramsCmd.Flags().StringVar(&paramsFmt, "format", "yaml", "output format (yaml, json)")

	rootCmd.AddCommand(runCmd, liveCmd, compareCmd, tuneCmd, listCmd, plotCmd, exportCmd, profilesCmd, paramsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&profile, "profile", config.DefaultProfile, "layout profile")
	cmd.Flags().StringVar(&simulator, "simulator", config.DefaultSimulator, "simulator backend")
	cmd.Flags().StringVar(&datasetRef, "dataset", config.DefaultDataset, "dataset file or generator (ring:N, grid:WxH, random:N:M)")
	cmd.Flags().IntVar(&ticks, "ticks", config.DefaultTicks, "number of ticks")
	cmd.Flags().IntVar(&width, "width", config.DefaultWidth, "canvas width in columns")
	cmd.Flags().IntVar(&height, "height", config.DefaultHeight, "canvas height in rows")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&theme, "theme", viz.ThemeNight.Name, "color theme")
	cmd.Flags().BoolVar(&colored, "color", true, "colored terminal output")
}

// loadConfig merges the config file, if any, with flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if configFile == "" || flags.Changed("profile") {
		cfg.Profile = profile
	}
	if configFile == "" || flags.Changed("simulator") {
		cfg.Simulator = simulator
	}
	if flags.Lookup("renderer") != nil && (configFile == "" || flags.Changed("renderer")) {
		cfg.Renderer = renderer
	}
	if configFile == "" || flags.Changed("dataset") {
		cfg.Dataset = datasetRef
	}
	if configFile == "" || flags.Changed("ticks") {
		cfg.Ticks = ticks
	}
	if configFile == "" || flags.Changed("width") {
		cfg.Width = width
	}
	if configFile == "" || flags.Changed("height") {
		cfg.Height = height
	}
	if configFile == "" || flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Lookup("settings") != nil && flags.Changed("settings") {
		cfg.SettingsFile = settingsArg
	}
	if cfg.SettingsFile != "" && cfg.Settings == nil {
		s, err := config.LoadSettings(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		cfg.Settings = s
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func rendererOptions(cfg *config.Config) experiment.RendererOptions {
	o := experiment.RendererOptionsFor(cfg)
	o.Theme = theme
	o.Color = colored
	return o
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: reg.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	var canvas *os.File
	if cfg.Renderer == string(export.SVG) || cfg.Renderer == string(export.PNG) {
		path := output
		if path == "" {
			path = "layout." + cfg.Renderer
		}
		canvas, err = os.Create(path)
		if err != nil {
			return err
		}
		defer canvas.Close()
	}

	opts := []experiment.Option{
		experiment.WithLogger(logger),
		experiment.WithMetrics(reg),
		experiment.WithRendererOptions(rendererOptions(cfg)),
	}
	if canvas != nil {
		opts = append(opts, experiment.WithCanvas(canvas))
	}
	exp := experiment.New(cfg, experiment.NewRegistry(), opts...)
	if err := exp.Setup(ctx); err != nil {
		return err
	}
	defer exp.Close()

	if cfg.SettingsFile != "" {
		w, err := config.NewWatcher(cfg.SettingsFile, logger)
		if err != nil {
			return err
		}
		w.OnChange(exp.QueueSettings)
		w.Start()
		defer w.Stop()
	}

	fmt.Printf("running %s on %s (%d points, %d edges)...\n",
		exp.Selection().Profile.Name, exp.Graph().Name, exp.Session().NumPoints(), exp.Session().NumEdges())
	start := time.Now()

	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	elapsed := time.Since(start)

	if tr, ok := exp.Renderer().(*viz.TerminalRenderer); ok {
		fmt.Println(tr.Frame())
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(exp.StorageRun(result))
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("ticks: %d (failed %d)\n", result.Ticks, result.Failures)
	if n := len(result.Movement); n > 0 {
		fmt.Printf("final movement: %.6f\n", result.Movement[n-1])
	}
	if canvas != nil {
		fmt.Printf("image: %s\n", canvas.Name())
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Renderer = "terminal"

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	exp := experiment.New(cfg, experiment.NewRegistry(),
		experiment.WithLogger(logger),
		experiment.WithRendererOptions(rendererOptions(cfg)),
	)
	if err := exp.Setup(ctx); err != nil {
		return err
	}
	defer exp.Close()

	tr, ok := exp.Renderer().(*viz.TerminalRenderer)
	if !ok {
		return fmt.Errorf("live view needs a terminal renderer")
	}

	m := viz.NewModel(ctx, exp.Session(), tr, exp.Graph().Points, cfg.Ticks)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func compareProfiles(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tALGORITHM\tDEVICE\tTICKS\tFAILED\tMOVEMENT\tTIME")

	for _, name := range args {
		cfg := *base
		cfg.Profile = name
		cfg.Renderer = "null"

		exp := experiment.New(&cfg, experiment.NewRegistry(), experiment.WithLogger(logger))
		if err := exp.Setup(ctx); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		start := time.Now()
		result, err := exp.Run(ctx)
		exp.Close()
		if result == nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}

		final := 0.0
		if n := len(result.Movement); n > 0 {
			final = result.Movement[n-1]
		}
		sel := exp.Selection()
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.6f\t%v\n",
			name,
			algorithmNames(sel.Profile),
			sel.Device,
			result.Ticks,
			result.Failures,
			final,
			time.Since(start).Round(time.Millisecond),
		)
	}
	return w.Flush()
}

func tuneLayout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	parsed := make([]optim.Axis, 0, len(axes))
	for _, a := range axes {
		axis, err := optim.ParseAxis(a)
		if err != nil {
			return err
		}
		parsed = append(parsed, axis)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := optim.NewGridSearch(algorithm, parsed, workers)
	fmt.Printf("running %d trials of %s on %s...\n", len(g.Combinations()), cfg.Profile, cfg.Dataset)
	best, trials, err := g.Search(ctx, cfg, experiment.WithLogger(logger))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(parsed)+1)
	for _, a := range parsed {
		header = append(header, strings.ToUpper(a.Param))
	}
	fmt.Fprintln(w, strings.Join(append(header, "MOVEMENT"), "\t"))
	for _, t := range trials {
		row := make([]string, 0, len(parsed)+1)
		for _, a := range parsed {
			row = append(row, fmt.Sprintf("%g", t.Params[a.Param]))
		}
		score := fmt.Sprintf("%.6f", t.Score)
		if t.Err != nil {
			score = "error: " + t.Err.Error()
		}
		fmt.Fprintln(w, strings.Join(append(row, score), "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Println("\nbest:")
	for _, a := range parsed {
		fmt.Printf("  %s: %g\n", a.Param, best.Params[a.Param])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATASET\tPROFILE\tTIME\tTICKS\tPOINTS\tEDGES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Dataset,
			run.Profile,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.NumPoints,
			run.NumEdges,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	movement, err := st.LoadMovement(runID)
	if err != nil {
		return err
	}
	if len(movement) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("dataset: %s\n", meta.Dataset)
	fmt.Printf("profile: %s\n", meta.Profile)
	fmt.Printf("ticks: %d\n\n", len(movement))

	graph := asciigraph.Plot(movement,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("mean point movement per tick"),
	)
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	if _, err := st.Load(runID); err != nil {
		return err
	}
	points, err := st.LoadPositions(runID)
	if err != nil {
		return err
	}
	edges, err := st.LoadEdges(runID)
	if err != nil {
		return err
	}

	f := export.Format(strings.ToLower(exportFmt))
	if f != export.SVG && f != export.PNG {
		return fmt.Errorf("unknown format: %s", exportFmt)
	}
	path := output
	if path == "" {
		path = filepath.Clean(runID + "." + string(f))
	}

	opts := export.DefaultOptions()
	opts.Width = exportW
	opts.Height = exportH
	opts.Theme = viz.GetTheme(theme)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(out, f, storedFrame(points, edges, opts.Theme.Points), opts); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// storedFrame rebuilds a drawable frame from persisted positions and edges.
// Midpoints are not stored, so edges are drawn straight.
func storedFrame(points dynamo.PointBuffer, edges dynamo.EdgeBuffer, pointColor color.RGBA) viz.Frame {
	colors := make([]color.RGBA, points.Len())
	for i := range colors {
		colors[i] = pointColor
	}
	return viz.Frame{
		View:        dynamo.View{Points: points, Edges: edges},
		Visible:     dynamo.DefaultVisibility(),
		PointColors: colors,
	}
}

func listProfiles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tALGORITHM\tDEVICES")
	for _, name := range config.ListProfiles() {
		candidates, err := config.Lookup(name)
		if err != nil {
			return err
		}
		for _, p := range candidates {
			devices := make([]string, len(p.Devices))
			for i, d := range p.Devices {
				devices[i] = string(d)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, algorithmNames(p), strings.Join(devices, ","))
		}
	}
	return w.Flush()
}

func algorithmNames(p *config.Profile) string {
	names := make([]string, len(p.Algorithms))
	for i, a := range p.Algorithms {
		names[i] = a.Name
	}
	return strings.Join(names, "+")
}

func printParams(cmd *cobra.Command, args []string) error {
	name := config.DefaultProfile
	if len(args) > 0 {
		name = args[0]
	}
	sel, err := config.Select(name)
	if err != nil {
		return err
	}
	client := sel.Profile.ToClient()

	switch paramsFmt {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(client)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(client)
	default:
		return fmt.Errorf("unknown format: %s", paramsFmt)
	}
}
