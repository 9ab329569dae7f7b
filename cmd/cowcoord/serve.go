/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/store"
	"github.com/ouranosinc/syncbird/internal/webhookapi"
)

// shutdownGrace bounds how long in-flight requests get to finish once a
// shutdown signal arrives.
const shutdownGrace = 10 * time.Second

type serveOptions struct {
	listenAddress        string
	metricsListenAddress string
	storePath            string
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	serveOpts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook HTTP shell and bootstrap the filesystem monitor registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, serveOpts)
		},
	}

	cmd.Flags().StringVar(&serveOpts.listenAddress, "listen", ":8080", "address the webhook HTTP shell listens on")
	cmd.Flags().StringVar(&serveOpts.metricsListenAddress, "metrics-listen", ":9090", "address the metrics endpoint listens on")
	cmd.Flags().StringVar(&serveOpts.storePath, "store", "/var/lib/syncbird/monitors.db", "path to the persisted monitor registry's SQLite database")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, serveOpts *serveOptions) error {
	log, err := newLogger(opts, "cowcoord")
	if err != nil {
		return err
	}

	monitorStore, err := store.Open(serveOpts.storePath)
	if err != nil {
		return fmt.Errorf("opening monitor store: %w", err)
	}
	defer monitorStore.Close()

	registerer := prometheus.NewRegistry()
	m, shutdownMeter, err := metrics.New(registerer)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() {
		if err := shutdownMeter(context.Background()); err != nil {
			log.Error(err, "failed to shut down metrics meter provider")
		}
	}()

	fsRegistry := fswatch.NewRegistry(log, monitorStore)
	fsRegistry.SetMetrics(m)
	factory, synchronizer, err := buildFactory(opts, log, fsRegistry, m)
	if err != nil {
		return err
	}
	synchronizer.SetMetrics(m)

	if err := fsRegistry.Bootstrap(func(kind string) (fswatch.Callback, error) {
		return resolveFSCallback(factory, kind)
	}); err != nil {
		return fmt.Errorf("bootstrapping monitor registry: %w", err)
	}

	dispatcher := handler.NewDispatcher(log, factory)
	dispatcher.SetMetrics(m)
	webhookServer := webhookapi.NewServer(log, factory, dispatcher)
	webhookServer.SetMetrics(m)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	webhookHTTP := &http.Server{Addr: serveOpts.listenAddress, Handler: webhookServer}
	metricsHTTP := &http.Server{Addr: serveOpts.metricsListenAddress, Handler: metricsMux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		log.Info("starting webhook server", "addr", serveOpts.listenAddress)
		if err := webhookHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("webhook server: %w", err)
			return
		}
		errs <- nil
	}()
	go func() {
		log.Info("starting metrics server", "addr", serveOpts.metricsListenAddress)
		if err := metricsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errs <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = webhookHTTP.Shutdown(shutdownCtx)
	_ = metricsHTTP.Shutdown(shutdownCtx)
	return nil
}

// resolveFSCallback adapts the handler factory into a fswatch.CallbackResolver:
// a persisted monitor's callback_kind names the handler configured under
// that same key, which must implement the filesystem callback interface.
func resolveFSCallback(factory *handler.Factory, kind string) (fswatch.Callback, error) {
	h, err := factory.Get(kind)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("no active handler configured for callback kind %q", kind)
	}
	cb, ok := h.(fswatch.Callback)
	if !ok {
		return nil, fmt.Errorf("handler %q does not implement filesystem callbacks", kind)
	}
	return cb, nil
}
