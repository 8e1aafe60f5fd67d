package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	flow "github.com/seoyhaein/flow-go"
	"github.com/seoyhaein/flow-go/internal/config"
	"github.com/seoyhaein/flow-go/internal/graphfile"
	"github.com/seoyhaein/flow-go/observe"
)

func newRunCmd(a *app) *cobra.Command {
	d := config.Defaults()
	cmd := &cobra.Command{
		Use:   "run GRAPH",
		Short: "Run a graph and print the per-node report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	f := cmd.Flags()
	f.IntP("workers", "w", d.Workers, "worker limit for the pool and bounded executors")
	f.String("executor", d.Executor, "executor: pool, go or bounded")
	f.Bool("cycle-check", d.CycleCheck, "reject cyclic graphs before running")
	f.Duration("timeout", d.Timeout, "stop waiting after this long (0 waits forever)")
	f.Bool("metrics", d.Metrics, "print Prometheus metrics after the report")
	f.Bool("tracing", d.Tracing, "export node spans over OTLP/HTTP")
	f.String("otlp-endpoint", d.OTLPEndpoint, "OTLP/HTTP collector host:port")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g, err := graphfile.Load(path)
	if err != nil {
		return err
	}

	var (
		cbs     []flow.Callback
		metrics *observe.Metrics
		reg     = prometheus.NewRegistry()
	)
	if a.cfg.Metrics {
		if metrics, err = observe.NewMetrics(reg); err != nil {
			return err
		}
		cbs = append(cbs, metrics)
	}
	if a.cfg.Tracing {
		tp, err := newTracerProvider(ctx, a.cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				a.log.WithError(err).Warn("tracer shutdown")
			}
		}()
		cbs = append(cbs, observe.NewTracing(tp))
	}

	built, err := graphfile.Build(g, nil, cbs...)
	if err != nil {
		return err
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	opts := []flow.Option{
		flow.WithWorkerPoolSize(a.cfg.Workers),
		flow.WithCycleCheck(a.cfg.CycleCheck),
	}
	if a.log.IsLevelEnabled(logrus.DebugLevel) {
		opts = append(opts, flow.WithDefaultCallbacks())
	}
	f := flow.NewFlow(opts...)
	a.log.WithField("graph", g.Name).
		WithField("nodes", len(built.Nodes)).
		WithField("executor", a.cfg.Executor).
		Debug("running graph")

	rc, runErr := a.execute(ctx, f, built.Entries)
	if metrics != nil {
		metrics.RunFinished(rc, runErr)
	}

	if rc != nil {
		if err := writeReport(out, a.cfg.Output, rc.Report()); err != nil {
			return err
		}
	}
	if metrics != nil {
		if err := writeMetrics(out, reg); err != nil {
			return err
		}
	}
	return runErr
}

// execute runs entries on the configured executor.  The pool executor keeps the
// partial run context on timeout; the others return none.
func (a *app) execute(ctx context.Context, f *flow.Flow, entries []*flow.Node) (*flow.RunContext, error) {
	switch a.cfg.Executor {
	case config.ExecutorGo:
		exec := flow.NewGoExecutor()
		return awaitAndClose(ctx, f.Start(ctx, exec, entries...), func() { _ = exec.Close() })
	case config.ExecutorBounded:
		exec := flow.NewBoundedExecutor(a.cfg.Workers)
		return awaitAndClose(ctx, f.Start(ctx, exec, entries...), exec.Close)
	default:
		return f.Run(ctx, entries...)
	}
}

func awaitAndClose(ctx context.Context, run *flow.Future[*flow.RunContext], closeFn func()) (*flow.RunContext, error) {
	rc, err := run.Get(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		go func() {
			_, _ = run.Wait()
			closeFn()
		}()
		return nil, err
	}
	closeFn()
	return rc, err
}

func newTracerProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName("flowctl"),
		semconv.ServiceVersion(version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return nil
}
