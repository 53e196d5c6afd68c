package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arvidfm/nanogio"
	"github.com/arvidfm/nanogio/transport/inproc"
)

var logger = nanogio.NewLogger("nanopipe")

func main() {
	f := new(flags)

	command := &cobra.Command{
		Use:   "nanopipe",
		Short: "push and pull messages through an event loop driven socket",
	}
	f.register(command.PersistentFlags())

	command.AddCommand(
		&cobra.Command{
			Use:   "pipe",
			Short: "Run a listener and a sender connected to each other",
			Run: func(cmd *cobra.Command, args []string) {
				run(cmd, f, true, true)
			},
		},
		&cobra.Command{
			Use:   "listen",
			Short: "Bind a pull socket and log every message it receives",
			Run: func(cmd *cobra.Command, args []string) {
				run(cmd, f, true, false)
			},
		},
		&cobra.Command{
			Use:   "send",
			Short: "Connect a push socket and send the message periodically",
			Run: func(cmd *cobra.Command, args []string) {
				run(cmd, f, false, true)
			},
		},
	)

	if err := command.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func run(cmd *cobra.Command, f *flags, listen, send bool) {
	if err := f.load(cmd.Flags()); err != nil {
		logger.Fatal(err)
	}
	level, _ := logrus.ParseLevel(f.LogLevel)
	logrus.SetLevel(level)
	logrus.AddHook(new(nanogio.TaggedHook))

	var metrics *nanogio.Metrics
	if f.MetricsListen != "" {
		registry := prometheus.NewRegistry()
		metrics = nanogio.NewMetrics(registry)
		go serveMetrics(f.MetricsListen, registry)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := &pipe{
		transport: inproc.New(),
		address:   f.Address,
		message:   []byte(f.Message),
		count:     f.Count,
		interval:  f.Interval,
		metrics:   metrics,
	}
	err := nanogio.NewEventLoop().Run(ctx, func(ctx context.Context) error {
		return p.run(ctx, listen, send)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.WithField("address", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("metrics server stopped")
	}
}
