// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import (
	"encoding/json"
	"time"
)

// Configuration is the persisted policy document handed to the worker.
// A Configuration value only exists once it has passed validation.
type Configuration struct {
	QuietStart                string   `json:"quietStart"`
	QuietEnd                  string   `json:"quietEnd"`
	BlockedProcesses          []string `json:"blockedProcesses"`
	Messages                  []string `json:"messages"`
	ScreenshotIntervalMinutes *int     `json:"screenshotIntervalMinutes,omitempty"`
	DeterrentEnabled          bool     `json:"deterrentEnabled"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (c Configuration) Clone() Configuration {
	out := c
	out.BlockedProcesses = append([]string(nil), c.BlockedProcesses...)
	out.Messages = append([]string(nil), c.Messages...)
	if c.ScreenshotIntervalMinutes != nil {
		v := *c.ScreenshotIntervalMinutes
		out.ScreenshotIntervalMinutes = &v
	}
	return out
}

// LaunchOutcome is the terminal state of a single worker launch.
type LaunchOutcome string

const (
	OutcomeExited      LaunchOutcome = "exited"
	OutcomeNotFound    LaunchOutcome = "not_found"
	OutcomeSpawnFailed LaunchOutcome = "spawn_failed"
	OutcomeCancelled   LaunchOutcome = "cancelled"
)

// ExecutionResult captures what happened during one worker launch.
// It is immutable once the process reached a terminal state and is never persisted.
type ExecutionResult struct {
	LaunchID        string        `json:"launchId"`
	Succeeded       bool          `json:"succeeded"`
	ExitCode        *int          `json:"exitCode,omitempty"`
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	ResolvedPath    string        `json:"resolvedPath"`
	FailureReason   string        `json:"failureReason,omitempty"`
	Outcome         LaunchOutcome `json:"outcome"`
	OutputTruncated bool          `json:"outputTruncated,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	DurationMs      int64         `json:"durationMs"`
}

// PackagingMode selects how the worker executable is located.
type PackagingMode string

const (
	// ModePackaged means the worker ships inside the installed application resources.
	ModePackaged PackagingMode = "packaged"
	// ModeDevelopment means the worker lives in a sibling build output directory.
	ModeDevelopment PackagingMode = "development"
)

// CommandRequest is one call from a UI surface into the dispatcher.
type CommandRequest struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandResponse is the uniform envelope every command resolves to.
type CommandResponse struct {
	ID      string         `json:"id,omitempty"`
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

// MarshalJSON writes data on success and error on failure, never both.
// A successful response always carries the data key, even when it is null.
func (r CommandResponse) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			ID      string `json:"id,omitempty"`
			Success bool   `json:"success"`
			Data    any    `json:"data"`
		}{r.ID, true, r.Data})
	}
	return json.Marshal(struct {
		ID      string         `json:"id,omitempty"`
		Success bool           `json:"success"`
		Error   *ResponseError `json:"error"`
	}{r.ID, false, r.Error})
}

// ErrorKind classifies a failed command for the UI.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindStorage        ErrorKind = "storage"
	KindCorruptConfig  ErrorKind = "corrupt_config"
	KindUnknownCommand ErrorKind = "unknown_command"
	KindBadPayload     ErrorKind = "bad_payload"
	KindLaunchInFlight ErrorKind = "launch_in_flight"
	KindWorkerNotFound ErrorKind = "worker_not_found"
	KindSpawnFailed    ErrorKind = "spawn_failed"
	KindWorkerFailed   ErrorKind = "worker_failed"
	KindCancelled      ErrorKind = "cancelled"
	KindInternal       ErrorKind = "internal"
)

// ResponseError is the structured error half of a CommandResponse.
type ResponseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// SavedConfig is the data returned by a successful save.
type SavedConfig struct {
	Config Configuration `json:"config"`
	Path   string        `json:"path"`
}

// WorkerStatus lists running worker processes.
type WorkerStatus struct {
	WorkerName string `json:"workerName"`
	PIDs       []int  `json:"pids"`
}
