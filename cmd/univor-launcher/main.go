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

// univor-launcher supervises the mock hypervisor daemon: it starts and
// stops univor-mockvisord processes and discovers their listening ports
// from the process table, no pid file needed.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/univor/internal/util/logging"
)

func main() {
	logging.SetupDefault()

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// result is the JSON line every command prints on stdout, mirroring the
// daemon's own machine-readable output.
type result struct {
	Returncode int    `json:"returncode"`
	Msg        string `json:"msg"`
	Running    *bool  `json:"running,omitempty"`
	PID        int32  `json:"pid,omitempty"`
	Port       int    `json:"port,omitempty"`
}

func printResult(r result) {
	b, _ := json.Marshal(r)
	fmt.Fprintln(os.Stdout, string(b))
}

func newRootCommand() *cobra.Command {
	daemonBin := daemonBinaryName

	root := &cobra.Command{
		Use:           "univor-launcher",
		Short:         "Manage the univor mock hypervisor daemon",
		Long:          "Manage the univor mock hypervisor daemon. If no port is passed to start, an automatic port will be selected.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&daemonBin, "daemon-binary", daemonBinaryName,
		"name or path of the daemon binary to spawn and match in the process table")

	root.AddCommand(
		newStartCommand(&daemonBin),
		newStopCommand(&daemonBin),
		newKillCommand(&daemonBin),
		newStatusCommand(&daemonBin),
		newListCommand(&daemonBin),
	)

	return root
}

func newStartCommand(daemonBin *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon as a background process",
		RunE: func(_ *cobra.Command, _ []string) error {
			if d, err := findDaemon(*daemonBin); err == nil && d != nil {
				runningPort, _ := listeningPort(d)
				printResult(result{
					Returncode: 1,
					Msg:        "a mock hypervisor daemon is already running",
					PID:        d.Pid,
					Port:       runningPort,
				})

				return errAlreadyRunning
			}

			pid, usedPort, err := startDaemon(*daemonBin, port)
			if err != nil {
				printResult(result{Returncode: 1, Msg: fmt.Sprintf("error: %v", err)})

				return err
			}

			printResult(result{Returncode: 0, Msg: "started daemon", PID: pid, Port: usedPort})

			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to start the daemon on (auto if not set)")

	return cmd
}

func newStopCommand(daemonBin *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon gracefully",
		RunE: func(_ *cobra.Command, _ []string) error {
			return signalDaemon(*daemonBin, false)
		},
	}
}

func newKillCommand(daemonBin *string) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Forcefully kill the daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return signalDaemon(*daemonBin, true)
		},
	}
}

func newStatusCommand(daemonBin *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of the daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := findDaemon(*daemonBin)
			if err != nil {
				printResult(result{Returncode: 1, Msg: fmt.Sprintf("error: %v", err)})

				return err
			}

			running := d != nil
			if !running {
				printResult(result{Returncode: 0, Msg: "daemon not running", Running: &running})

				return nil
			}

			port, _ := listeningPort(d)
			printResult(result{
				Returncode: 0,
				Msg:        fmt.Sprintf("daemon running with PID %d", d.Pid),
				Running:    &running,
				PID:        d.Pid,
				Port:       port,
			})

			return nil
		},
	}
}

func newListCommand(daemonBin *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running daemons and their listening ports",
		RunE: func(_ *cobra.Command, _ []string) error {
			daemons, err := findDaemons(*daemonBin)
			if err != nil {
				printResult(result{Returncode: 1, Msg: fmt.Sprintf("error: %v", err)})

				return err
			}

			for _, d := range daemons {
				port, _ := listeningPort(d)
				printResult(result{Returncode: 0, Msg: "daemon running", PID: d.Pid, Port: port})
			}

			if len(daemons) == 0 {
				printResult(result{Returncode: 0, Msg: "no daemon running"})
			}

			return nil
		},
	}
}

var errAlreadyRunning = errors.New("daemon already running")
