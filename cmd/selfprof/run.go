package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"selfprof/internal/measure"
	"selfprof/internal/observ"
	"selfprof/internal/query"
	"selfprof/internal/selfprof"
	"selfprof/internal/workload"
)

const noManifestMessage = "no selfprof.toml found\nplease specify the manifest explicitly, e.g.:\n  selfprof run path/to/selfprof.toml"

type runOptions struct {
	ui       string
	jobs     int
	cacheDir string
	noCache  bool
	timings  bool
	top      int
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [manifest]",
		Short: "Run a workload through the query engine",
		Long: `Run loads a workload manifest (selfprof.toml, searched upwards from the
working directory when not given), checks every item through the query
engine and prints the per-item results. Self-profiling is controlled by
the --self-profile* flags and the manifest's [profile] table.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ui, "ui", "auto", "progress view (auto|on|off)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "items checked in parallel (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "incremental cache directory (default: $XDG_CACHE_HOME/selfprof)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the incremental cache")
	cmd.Flags().BoolVar(&opts.timings, "timings", false, "print host phase timings")
	cmd.Flags().IntVar(&opts.top, "top", 10, "rows of the in-memory summary shown for ring storage")
	return cmd
}

func resolveManifest(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	path, ok, err := workload.Find(".")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(noManifestMessage)
	}
	return path, nil
}

func runWorkload(cmd *cobra.Command, args []string, opts *runOptions) (err error) {
	view, err := parseProgressView(opts.ui)
	if err != nil {
		return err
	}
	log, err := setupLogging(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }() //nolint:errcheck // stderr sync fails on some terminals

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	out := cmd.OutOrStdout()
	timer := observ.NewTimer()

	idx := timer.Begin("load manifest")
	path, err := resolveManifest(args)
	if err != nil {
		return err
	}
	m, err := workload.Load(path)
	if err != nil {
		return err
	}
	timer.End(idx, filepath.Base(m.Path))

	sess, err := setupSelfProfile(cmd, m, log)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := sess.Close(context.WithoutCancel(cmd.Context()))
		if closeErr != nil {
			err = errors.Join(err, closeErr)
			return
		}
		if p := sess.path(); p != "" && err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "self-profile written to %s\n", p)
		}
	}()
	ref := sess.ref
	ctx := selfprof.WithRef(cmd.Context(), ref)

	idx = timer.Begin("build graph")
	var g *workload.Graph
	ref.VerboseGenericActivity("build_graph").Run(func() {
		g, err = workload.Build(m.Config.Items)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", m.Path, err)
	}
	timer.End(idx, fmt.Sprintf("%d items", len(g.Items)))

	disk, err := openCache(opts, log)
	if err != nil {
		return err
	}
	engine := query.NewEngine(query.Options{Profiler: ref, Disk: disk, Logger: log})
	runner := workload.NewRunner(m.Config.Package.Name, g, engine)
	sess.trackEngine(engine)

	idx = timer.Begin("execute")
	var report *workload.Report
	if view.interactive(out) {
		names := make([]string, 0, len(g.Items))
		for _, id := range g.Toposort().Order {
			names = append(names, g.Items[id].Name)
		}
		report, err = runWithUI(ctx, out, m.Config.Package.Name, names, runner, opts.jobs)
	} else {
		report, err = runner.Run(ctx, workload.Options{Jobs: opts.jobs})
	}
	if err != nil {
		return err
	}
	timer.End(idx, "")

	idx = timer.Begin("alloc query strings")
	sess.allocQueryStrings()
	timer.End(idx, "")

	printReport(out, report)
	if opts.timings {
		fmt.Fprint(out, timer.Summary())
	}
	if ring := sess.ring(); ring != nil {
		fmt.Fprintln(out)
		renderSummary(out, measure.Summarize(ring.Snapshot()), summaryOptions{limit: opts.top, width: 40})
	}
	return nil
}

func openCache(opts *runOptions, log *zap.Logger) (*query.DiskCache, error) {
	if opts.noCache {
		return nil, nil
	}
	var (
		disk *query.DiskCache
		err  error
	)
	if opts.cacheDir != "" {
		disk, err = query.NewDiskCache(opts.cacheDir)
	} else {
		disk, err = query.OpenDiskCache("selfprof")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open incremental cache: %w", err)
	}
	log.Debug("incremental cache", zap.String("dir", disk.Dir()))
	return disk, nil
}

func printReport(out io.Writer, rep *workload.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "%s: %d items in %ss\n", rep.Package, len(rep.Results), observ.DurationToSecsStr(rep.Elapsed))
	for _, res := range rep.Results {
		fmt.Fprintf(out, "  %-24s cost=%-8d digest=%016x\n", res.Item, res.Cost, res.Digest)
	}
	st := rep.Stats
	fmt.Fprintf(out, "queries: %d invocations, %d computed, %d loaded, %d hits, %d blocked\n",
		st.Invocations, st.Computed, st.Loaded, st.Hits, st.Blocked)
}
