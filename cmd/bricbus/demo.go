package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/casualjim/bricbus"
	"github.com/casualjim/bricbus/broker"
	"github.com/casualjim/bricbus/internal/report"
	"github.com/casualjim/bricbus/internal/scenario"
	"github.com/casualjim/bricbus/pkg/natsx"
	"github.com/casualjim/bricbus/pkg/slogx"
	"github.com/casualjim/bricbus/pkg/stdx"
	"github.com/casualjim/bricbus/pkg/uuidx"
	"github.com/fatih/color"
	"github.com/fogfish/opts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type demoOptions struct {
	frames       int
	scenarioPath string
	useNATS      bool
	dump         bool
	plain        bool
	targetOrigin string
	selector     string
	metricsAddr  string
}

func newDemoCmd() *cobra.Command {
	o := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session between frames and print what was delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, o)
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.frames, "frames", "n", 3, "number of frames in the default scenario")
	f.StringVarP(&o.scenarioPath, "scenario", "s", "", "YAML scenario file")
	f.BoolVar(&o.useNATS, "nats", false, "route traffic through the NATS server at NATS_URL")
	f.BoolVar(&o.dump, "dump", false, "pretty print the full report")
	f.BoolVar(&o.plain, "plain", false, "disable colors and markdown styling")
	f.StringVar(&o.targetOrigin, "target-origin", envOr("BRICBUS_TARGET_ORIGIN", "*"), "target origin for posted messages")
	f.StringVar(&o.selector, "selector", envOr("BRICBUS_SELECTOR", broker.DefaultSelector), "selector for managed frames")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve broker metrics on this address after the run")
	stdx.Must0(cmd.MarkFlagFilename("scenario", "yaml", "yml"))
	return cmd
}

func runDemo(cmd *cobra.Command, o demoOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.plain {
		color.NoColor = true
	}

	sc := scenario.Default(o.frames)
	if o.scenarioPath != "" {
		loaded, err := scenario.Load(o.scenarioPath)
		if err != nil {
			return err
		}
		sc = loaded
	}

	options := []opts.Option[bricbus.Host]{
		bricbus.TargetOrigin(o.targetOrigin),
		bricbus.Selector(o.selector),
	}
	env, err := startEnvironment(ctx, sc, o.useNATS, options)
	if err != nil {
		return err
	}
	defer env.Close()

	rep, runErr := scenario.Run(ctx, env, sc)
	out := cmd.OutOrStdout()
	if rep != nil {
		report.Steps(out, rep.Steps)
		fmt.Fprintln(out)
		report.Deliveries(out, rep.Deliveries)
		fmt.Fprintln(out)
		if err := report.Render(out, report.Markdown(rep), o.plain); err != nil {
			return err
		}
		if o.dump {
			if err := report.Dump(out, rep, !o.plain); err != nil {
				return err
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	if o.metricsAddr != "" {
		return serveMetrics(ctx, env.Broker(), o.metricsAddr)
	}
	return nil
}

type closer struct {
	bricbus.Environment
	close func()
}

func (c closer) Close() {
	c.Environment.Close()
	c.close()
}

func startEnvironment(ctx context.Context, sc *scenario.Scenario, useNATS bool, options []opts.Option[bricbus.Host]) (bricbus.Environment, error) {
	if !useNATS {
		host, err := scenario.Build(sc, options...)
		if err != nil {
			return nil, err
		}
		if err := host.Start(ctx); err != nil {
			host.Close()
			return nil, err
		}
		return host, nil
	}

	conn, err := natsx.NewClient()
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	// each run gets its own subject space so concurrent demos do not cross talk
	prefix := natsx.Subject(natsx.DefaultPrefix, uuidx.Named("demo"))
	host, err := bricbus.NewNATSHost(conn, prefix, options...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	env := closer{Environment: host, close: conn.Close}
	for _, f := range sc.Frames {
		if f.Object {
			slog.Warn("object frames are plain frames over nats", slogx.Window(f.ID))
		}
		if err := host.AddFrame(f.ID, f.Classes...); err != nil {
			env.Close()
			return nil, err
		}
	}
	if err := host.Start(ctx); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func serveMetrics(ctx context.Context, b *broker.Broker, addr string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(broker.NewCollector(b, "")); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-served:
			return
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
