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

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const daemonBinaryName = "univor-mockvisord"

// portEvent is the stdout line the daemon prints once its API listener is
// bound.
type portEvent struct {
	Event string `json:"event"`
	Port  int    `json:"port"`
}

// startDaemon spawns the daemon detached and reads the port event from its
// stdout. Returns the child pid and the port it listens on.
func startDaemon(daemonBin string, port int) (int32, int, error) {
	cmd := exec.Command(daemonBin, "--port", strconv.Itoa(port))
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, 0, fmt.Errorf("piping daemon stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, 0, fmt.Errorf("starting daemon: %w", err)
	}

	selected := 0
	scanner := bufio.NewScanner(stdout)

	// The event is expected within the first few lines of output.
	for i := 0; i < 10 && scanner.Scan(); i++ {
		var event portEvent
		if err := json.Unmarshal([]byte(scanner.Text()), &event); err != nil {
			continue
		}

		if event.Event == "port_selected" || event.Event == "port_used" {
			selected = event.Port

			break
		}
	}

	if selected == 0 {
		_ = cmd.Process.Kill()

		return 0, 0, fmt.Errorf("daemon did not report a port")
	}

	pid := int32(cmd.Process.Pid)

	// The child keeps running after the launcher exits; drain its stdout so
	// it never blocks on a full pipe, and reap it if it dies first.
	go func() {
		for scanner.Scan() {
		}
		_ = cmd.Wait()
	}()

	return pid, selected, nil
}

// findDaemon returns the first running daemon process, or nil.
func findDaemon(daemonBin string) (*process.Process, error) {
	daemons, err := findDaemons(daemonBin)
	if err != nil {
		return nil, err
	}

	if len(daemons) == 0 {
		return nil, nil
	}

	return daemons[0], nil
}

// findDaemons scans the process table for daemon processes, matching by
// command line. Own pid is excluded.
func findDaemons(daemonBin string) ([]*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	own := int32(os.Getpid())

	var out []*process.Process
	for _, p := range procs {
		if p.Pid == own {
			continue
		}

		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}

		if strings.Contains(cmdline, daemonBin) {
			out = append(out, p)
		}
	}

	return out, nil
}

// listeningPort returns the first port the process listens on.
func listeningPort(p *process.Process) (int, error) {
	conns, err := p.Connections()
	if err != nil {
		return 0, fmt.Errorf("listing connections of pid %d: %w", p.Pid, err)
	}

	for _, c := range conns {
		if c.Status == "LISTEN" {
			return int(c.Laddr.Port), nil
		}
	}

	return 0, fmt.Errorf("pid %d has no listening port", p.Pid)
}

// signalDaemon terminates (or kills) the running daemon and reports the
// outcome as a JSON result line.
func signalDaemon(daemonBin string, force bool) error {
	d, err := findDaemon(daemonBin)
	if err != nil {
		printResult(result{Returncode: 1, Msg: fmt.Sprintf("error: %v", err)})

		return err
	}

	if d == nil {
		printResult(result{Returncode: 1, Msg: "daemon not running"})

		return fmt.Errorf("daemon not running")
	}

	if force {
		err = d.Kill()
	} else {
		err = d.Terminate()
	}

	if err != nil {
		printResult(result{Returncode: 1, Msg: fmt.Sprintf("error signaling pid %d: %v", d.Pid, err)})

		return err
	}

	// Give the daemon a moment to shut down before checking.
	time.Sleep(time.Second)

	if running, _ := d.IsRunning(); running {
		printResult(result{Returncode: 1, Msg: fmt.Sprintf("failed to stop daemon with PID %d", d.Pid)})

		return fmt.Errorf("daemon with pid %d still running", d.Pid)
	}

	verb := "stopped"
	if force {
		verb = "killed"
	}

	printResult(result{Returncode: 0, Msg: fmt.Sprintf("%s daemon with PID %d", verb, d.Pid)})

	return nil
}
