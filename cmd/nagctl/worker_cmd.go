package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
)

var launchCmd = &cobra.Command{
	Use:   "launch [-- args...]",
	Short: "Launch the worker and wait for it to exit",
	Long: `Launches the nagd worker and waits until it exits, then prints what it wrote.

Without arguments the worker receives the saved configuration as its single
argument. Anything after "--" is passed to the worker verbatim instead.`,
	RunE: runLaunch,
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose a program with the system file dialog",
	RunE:  runPick,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the worker is and whether it is running",
	RunE:  runStatus,
}

var launchJSON bool

func init() {
	launchCmd.Flags().BoolVar(&launchJSON, "json", false, "Print the full launch result as JSON")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var payload json.RawMessage
	if len(args) > 0 {
		if payload, err = json.Marshal(args); err != nil {
			return fmt.Errorf("failed to encode worker arguments: %w", err)
		}
	}

	resp, runErr := a.run(cmd.Context(), domain.CommandLaunchWorker, payload)

	var result *domain.ExecutionResult
	switch {
	case resp.Success:
		r := resp.Data.(domain.ExecutionResult)
		result = &r
	case resp.Error != nil:
		if r, ok := resp.Error.Details.(domain.ExecutionResult); ok {
			result = &r
		}
		printViolations(cmd.ErrOrStderr(), resp)
	}

	if result != nil {
		if launchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printExecution(cmd, result)
		}
	}
	return runErr
}

func printExecution(cmd *cobra.Command, r *domain.ExecutionResult) {
	out := cmd.OutOrStdout()
	if r.Stdout != "" {
		fmt.Fprint(out, r.Stdout)
	}
	if r.Stderr != "" {
		fmt.Fprint(cmd.ErrOrStderr(), r.Stderr)
	}

	exit := "-"
	if r.ExitCode != nil {
		exit = strconv.Itoa(*r.ExitCode)
	}
	rows := [][]string{
		{"Worker", r.ResolvedPath},
		{"Outcome", string(r.Outcome)},
		{"Exit code", exit},
		{"Duration", fmt.Sprintf("%d ms", r.DurationMs)},
	}
	if r.FailureReason != "" {
		rows = append(rows, []string{"Reason", r.FailureReason})
	}
	if r.OutputTruncated {
		rows = append(rows, []string{"Output", "truncated (a child process kept the stream open)"})
	}
	fmt.Fprintln(cmd.ErrOrStderr(), renderTable([]string{"Launch", r.LaunchID}, rows))
}

func runPick(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.run(cmd.Context(), domain.CommandSelectFile, nil)
	if err != nil {
		return err
	}
	if resp.Data == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "No file selected")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Data)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.run(cmd.Context(), domain.CommandWorkerStatus, nil)
	if err != nil {
		return err
	}
	status := resp.Data.(domain.WorkerStatus)

	workerPath := a.context.WorkerPath()
	present := "missing"
	if infra.NewFileSystemManager().Exists(workerPath) {
		present = "present"
	}

	running := "not running"
	if len(status.PIDs) > 0 {
		pids := make([]string, len(status.PIDs))
		for i, pid := range status.PIDs {
			pids[i] = strconv.Itoa(pid)
		}
		running = "running (pid " + strings.Join(pids, ", ") + ")"
	}

	configState := "saved"
	if _, err := a.run(cmd.Context(), domain.CommandLoadConfig, nil); err != nil {
		configState = "damaged: " + err.Error()
	} else if !infra.NewFileSystemManager().Exists(a.store.Path()) {
		configState = "not saved (defaults)"
	}

	rows := [][]string{
		{"Mode", infra.DescribeMode(a.context.Mode)},
		{"Worker", workerPath + " (" + present + ")"},
		{"Process", running},
		{"Configuration", a.store.Path() + " (" + configState + ")"},
		{"Log", a.context.LogPath()},
	}

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		fmt.Fprintln(out, renderTable([]string{"nagctl", Version}, rows))
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
	}
	return nil
}
