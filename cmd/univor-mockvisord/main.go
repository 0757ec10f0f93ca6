/*
Copyright 2024 Alexandre Mahdhaoui

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

// univor-mockvisord is the mock hypervisor daemon: an in-memory VM store
// exposed over the REST surface univor connectors speak.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexandremahdhaoui/univor/internal/driver/server"
	"github.com/alexandremahdhaoui/univor/internal/store"
	"github.com/alexandremahdhaoui/univor/internal/util/gracefulshutdown"
	"github.com/alexandremahdhaoui/univor/internal/util/httputil"
	"github.com/alexandremahdhaoui/univor/internal/util/logging"
)

const Name = "univor-mockvisord"

var (
	Version        = "dev" //nolint:gochecknoglobals // set by ldflags
	CommitSHA      = "n/a" //nolint:gochecknoglobals // set by ldflags
	BuildTimestamp = "n/a" //nolint:gochecknoglobals // set by ldflags
)

// portEvent is the stdout line the launcher parses to discover the port.
type portEvent struct {
	Event string `json:"event"`
	Port  int    `json:"port"`
}

func main() {
	_, _ = fmt.Fprintf(
		os.Stderr,
		"Starting %s version %s (%s) %s\n",
		Name,
		Version,
		CommitSHA,
		BuildTimestamp,
	)

	portFlag := flag.Int("port", -1, "port to run the API server on (0 selects a free port)")
	flag.Parse()

	gs := gracefulshutdown.New(Name)
	ctx := gs.Context()

	// --------------------------------------------- Config --------------------------------------------------------- //

	config, err := loadConfig()
	if err != nil {
		slog.Error("loading configuration", "error", err.Error())
		os.Exit(1)
	}

	if *portFlag >= 0 {
		config.APIServer.Port = *portFlag
	}

	log := logging.Setup(logging.Options{Development: config.Development, Level: slog.LevelInfo})

	// --------------------------------------------- Store ---------------------------------------------------------- //

	vmStore := store.New(store.Options{AllowDuplicateNames: config.AllowDuplicateNames})
	server.RegisterStoreMetrics(prometheus.DefaultRegisterer, vmStore)

	// --------------------------------------------- API ------------------------------------------------------------ //

	serverOpts := []server.Option{
		server.WithLogger(log),
		server.WithShutdownFunc(gs.CancelFunc()),
	}
	if config.APIServer.BasicAuth.User != "" {
		serverOpts = append(serverOpts,
			server.WithBasicAuth(config.APIServer.BasicAuth.User, config.APIServer.BasicAuth.Password))
	}

	apiHandler := server.New(vmStore, serverOpts...)

	// The API listener is bound up front so an auto-selected port can be
	// reported before serving. The launcher parses this stdout line.
	addr := fmt.Sprintf("%s:%d", config.APIServer.Host, config.APIServer.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.ErrorContext(ctx, "binding api listener", "addr", addr, "error", err.Error())
		os.Exit(98) // EADDRINUSE semantics, the launcher distinguishes this.
	}

	port := listener.Addr().(*net.TCPAddr).Port

	event := portEvent{Event: "port_used", Port: port}
	if config.APIServer.Port == 0 {
		event.Event = "port_selected"
	}

	b, _ := json.Marshal(event)
	_, _ = fmt.Fprintln(os.Stdout, string(b))

	slog.InfoContext(ctx, "serving mock hypervisor api", "addr", listener.Addr().String())

	servers := map[string]httputil.Server{
		"api": {
			Srv: &http.Server{ //nolint:exhaustruct
				Handler:           apiHandler,
				ReadHeaderTimeout: time.Second,
			},
			Listener: listener,
		},
	}

	// --------------------------------------------- Metrics -------------------------------------------------------- //

	if config.MetricsServer.Port != 0 {
		metricsHandler := http.NewServeMux()
		metricsHandler.Handle(config.MetricsServer.Path, promhttp.Handler())

		servers["metrics"] = httputil.Server{
			Srv: &http.Server{ //nolint:exhaustruct
				Addr:              fmt.Sprintf("%s:%d", config.APIServer.Host, config.MetricsServer.Port),
				Handler:           metricsHandler,
				ReadHeaderTimeout: time.Second,
			},
		}
	}

	// --------------------------------------------- Probes --------------------------------------------------------- //

	if config.ProbesServer.Port != 0 {
		probesHandler := http.NewServeMux()

		probesHandler.Handle(config.ProbesServer.LivenessPath, http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		probesHandler.Handle(config.ProbesServer.ReadinessPath, http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		servers["probes"] = httputil.Server{
			Srv: &http.Server{ //nolint:exhaustruct
				Addr:              fmt.Sprintf("%s:%d", config.APIServer.Host, config.ProbesServer.Port),
				Handler:           probesHandler,
				ReadHeaderTimeout: time.Second,
			},
		}
	}

	// --------------------------------------------- Run Server ----------------------------------------------------- //

	httputil.Serve(servers, gs)

	slog.Info("gracefully stopped", "binary", Name)
}
