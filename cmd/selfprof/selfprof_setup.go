package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"selfprof/internal/measure"
	"selfprof/internal/measure/otelrec"
	"selfprof/internal/query"
	"selfprof/internal/selfprof"
	"selfprof/internal/version"
	"selfprof/internal/workload"
)

// profileSession is the self-profiling state of one command run. Its ref
// is always usable; profiler is nil when self-profiling is off.
type profileSession struct {
	ref      selfprof.Ref
	profiler *selfprof.SelfProfiler
	provider *sdktrace.TracerProvider
	engine   *query.Engine
	mapped   bool
	closed   bool
}

type profileSettings struct {
	enabled      bool
	dir          string
	events       []string
	mode         measure.StorageMode
	ringSize     int
	timePasses   bool
	extraVerbose bool
	otlpEndpoint string
	otlpInsecure bool
}

// readProfileSettings merges the persistent flags with the manifest's
// [profile] table. Flags that were set explicitly win.
func readProfileSettings(cmd *cobra.Command, m *workload.Manifest) (profileSettings, error) {
	flags := cmd.Root().PersistentFlags()
	var s profileSettings
	var err error

	if s.enabled, err = flags.GetBool("self-profile"); err != nil {
		return s, fmt.Errorf("failed to get self-profile flag: %w", err)
	}
	if s.dir, err = flags.GetString("self-profile-dir"); err != nil {
		return s, fmt.Errorf("failed to get self-profile-dir flag: %w", err)
	}
	if !flags.Changed("self-profile-dir") {
		s.dir = m.ProfileDir()
	}
	if flags.Changed("self-profile-events") {
		if s.events, err = flags.GetStringSlice("self-profile-events"); err != nil {
			return s, fmt.Errorf("failed to get self-profile-events flag: %w", err)
		}
	} else {
		s.events = m.Config.Profile.Events
	}

	modeStr, err := flags.GetString("self-profile-mode")
	if err != nil {
		return s, fmt.Errorf("failed to get self-profile-mode flag: %w", err)
	}
	if !flags.Changed("self-profile-mode") {
		modeStr = m.Config.Profile.Mode
	}
	if s.mode, err = measure.ParseMode(modeStr); err != nil {
		return s, err
	}
	if s.ringSize, err = flags.GetInt("self-profile-ring-size"); err != nil {
		return s, fmt.Errorf("failed to get self-profile-ring-size flag: %w", err)
	}

	if s.timePasses, err = flags.GetBool("time-passes"); err != nil {
		return s, fmt.Errorf("failed to get time-passes flag: %w", err)
	}
	s.timePasses = s.timePasses || m.Config.Profile.TimePasses
	if s.extraVerbose, err = flags.GetBool("time"); err != nil {
		return s, fmt.Errorf("failed to get time flag: %w", err)
	}
	// --time implies the pass lines as well
	s.timePasses = s.timePasses || s.extraVerbose

	if s.otlpEndpoint, err = flags.GetString("otlp-endpoint"); err != nil {
		return s, fmt.Errorf("failed to get otlp-endpoint flag: %w", err)
	}
	if s.otlpInsecure, err = flags.GetBool("otlp-insecure"); err != nil {
		return s, fmt.Errorf("failed to get otlp-insecure flag: %w", err)
	}
	if s.otlpEndpoint != "" {
		s.enabled = true
	}
	return s, nil
}

// setupSelfProfile opens the session's self-profiler when requested.
func setupSelfProfile(cmd *cobra.Command, m *workload.Manifest, log *zap.Logger) (*profileSession, error) {
	s, err := readProfileSettings(cmd, m)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	if !s.enabled {
		return &profileSession{
			ref: selfprof.NewRef(nil, s.timePasses, s.extraVerbose).WithOutput(out),
		}, nil
	}

	sess := &profileSession{}
	var extra []measure.Recorder
	if s.otlpEndpoint != "" {
		cfg := otelrec.DefaultOTLPConfig("selfprof")
		cfg.Endpoint = s.otlpEndpoint
		cfg.Insecure = s.otlpInsecure
		cfg.ServiceVersion = version.Version
		provider, err := otelrec.NewOTLPProvider(cmd.Context(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up OTLP export: %w", err)
		}
		sess.provider = provider
		extra = append(extra, otelrec.New(provider))
	}

	p, err := selfprof.New(selfprof.Config{
		OutputDir:    s.dir,
		CrateName:    m.Config.Package.Name,
		EventFilters: s.events,
		Mode:         s.mode,
		RingSize:     s.ringSize,
		Extra:        extra,
		Logger:       log,
	})
	if err != nil {
		if sess.provider != nil {
			_ = sess.provider.Shutdown(context.Background()) //nolint:errcheck // setup already failed
		}
		return nil, err
	}
	sess.profiler = p
	sess.ref = selfprof.NewRef(p, s.timePasses, s.extraVerbose).WithOutput(out)
	return sess, nil
}

// ring returns the in-memory events, if the session keeps any.
func (s *profileSession) ring() *measure.RingRecorder {
	if s.profiler == nil {
		return nil
	}
	return s.profiler.Ring()
}

// path returns the profile file, or "".
func (s *profileSession) path() string {
	if s.profiler == nil {
		return ""
	}
	return s.profiler.Path()
}

// trackEngine registers the query engine whose invocations the session
// has to label before it closes.
func (s *profileSession) trackEngine(e *query.Engine) {
	s.engine = e
}

// allocQueryStrings binds every recorded query invocation to its label.
// It runs at most once per session.
func (s *profileSession) allocQueryStrings() {
	if s.engine == nil || s.mapped {
		return
	}
	s.mapped = true
	s.ref.VerboseGenericActivity("alloc_query_strings").Run(s.engine.AllocSelfProfileQueryStrings)
}

// Close labels any query invocations that are still unmapped, ends the
// profiler, then shuts the OTLP exporter down so the last batch is sent.
func (s *profileSession) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.allocQueryStrings()
	s.closed = true
	var errs []error
	if s.profiler != nil {
		errs = append(errs, s.profiler.Close())
	}
	if s.provider != nil {
		if err := s.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otlp shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
