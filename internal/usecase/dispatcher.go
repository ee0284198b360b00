// Package usecase contains application business logic.
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// ErrLaunchInFlight is returned when a launch overlaps another on the same dispatcher.
var ErrLaunchInFlight = errors.New("a worker launch is already in progress")

// BadPayloadError reports a request payload of the wrong shape for its command.
type BadPayloadError struct {
	Command domain.Command
	Reason  string
}

func (e *BadPayloadError) Error() string {
	return fmt.Sprintf("invalid payload for %s: %s", e.Command, e.Reason)
}

// LaunchError carries the terminal result of a launch that did not succeed.
type LaunchError struct {
	Result domain.ExecutionResult
}

func (e *LaunchError) Error() string {
	if e.Result.FailureReason != "" {
		return e.Result.FailureReason
	}
	return fmt.Sprintf("worker launch ended with outcome %s", e.Result.Outcome)
}

// DispatcherConfig holds dispatcher behaviour switches.
type DispatcherConfig struct {
	// AllowConcurrentLaunches lets launch-worker requests overlap.
	AllowConcurrentLaunches bool
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher routes named commands to their handlers and wraps every outcome
// in a CommandResponse. No handler fault escapes as an error or panic.
type Dispatcher struct {
	store          domain.ConfigStore
	launcher       domain.WorkerLauncher
	picker         domain.FilePicker
	processManager domain.ProcessManager
	config         DispatcherConfig
	handlers       map[domain.Command]handlerFunc
	launching      atomic.Bool
	logger         *zap.Logger
}

// NewDispatcher creates a dispatcher over its collaborators.
func NewDispatcher(
	store domain.ConfigStore,
	launcher domain.WorkerLauncher,
	picker domain.FilePicker,
	pm domain.ProcessManager,
	config DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		store:          store,
		launcher:       launcher,
		picker:         picker,
		processManager: pm,
		config:         config,
		logger:         logger,
	}
	d.handlers = map[domain.Command]handlerFunc{
		domain.CommandSelectFile:   d.selectFile,
		domain.CommandSaveConfig:   d.saveConfig,
		domain.CommandLoadConfig:   d.loadConfig,
		domain.CommandLaunchWorker: d.launchWorker,
		domain.CommandWorkerStatus: d.workerStatus,
	}
	return d
}

// Handle dispatches a request and tags the response with its id.
func (d *Dispatcher) Handle(ctx context.Context, req domain.CommandRequest) domain.CommandResponse {
	resp := d.Dispatch(ctx, req.Command, req.Payload)
	resp.ID = req.ID
	return resp
}

// Dispatch runs the named command with payload.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload json.RawMessage) (resp domain.CommandResponse) {
	start := time.Now()
	cmd := domain.ParseCommand(name)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked",
				zap.String("command", name),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = failure(&domain.ResponseError{
				Kind:    domain.KindInternal,
				Message: fmt.Sprintf("internal error while handling %s: %v", name, r),
			})
		}

		fields := []zap.Field{
			zap.String("command", name),
			zap.Bool("success", resp.Success),
			zap.Duration("duration", time.Since(start)),
		}
		if resp.Error != nil {
			fields = append(fields, zap.String("error_kind", string(resp.Error.Kind)))
		}
		d.logger.Info("command dispatched", fields...)
	}()

	handler, ok := d.handlers[cmd]
	if !ok {
		return failure(&domain.ResponseError{
			Kind:    domain.KindUnknownCommand,
			Message: fmt.Sprintf("unknown command: %q", name),
		})
	}

	data, err := handler(ctx, payload)
	if err != nil {
		return failure(toResponseError(err))
	}
	return domain.CommandResponse{Success: true, Data: data}
}

func (d *Dispatcher) selectFile(ctx context.Context, _ json.RawMessage) (any, error) {
	path, ok, err := d.picker.PickFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open file dialog: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return path, nil
}

func (d *Dispatcher) saveConfig(_ context.Context, payload json.RawMessage) (any, error) {
	if isEmpty(payload) {
		return nil, &BadPayloadError{Command: domain.CommandSaveConfig, Reason: "a configuration object is required"}
	}
	cfg, err := d.store.Save(payload)
	if err != nil {
		return nil, err
	}
	return domain.SavedConfig{Config: *cfg, Path: d.store.Path()}, nil
}

func (d *Dispatcher) loadConfig(_ context.Context, _ json.RawMessage) (any, error) {
	cfg, err := d.store.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (d *Dispatcher) launchWorker(ctx context.Context, payload json.RawMessage) (any, error) {
	if !d.config.AllowConcurrentLaunches {
		if !d.launching.CompareAndSwap(false, true) {
			return nil, ErrLaunchInFlight
		}
		defer d.launching.Store(false)
	}

	args, err := d.launchArgs(payload)
	if err != nil {
		return nil, err
	}

	result := d.launcher.Launch(ctx, args)
	if !result.Succeeded {
		return nil, &LaunchError{Result: result}
	}
	return result, nil
}

// launchArgs decodes the argument list. An empty payload launches the worker
// with the persisted configuration as its single argument.
func (d *Dispatcher) launchArgs(payload json.RawMessage) ([]string, error) {
	if isEmpty(payload) {
		cfg, err := d.store.Load()
		if err != nil {
			return nil, err
		}
		doc, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode configuration: %w", err)
		}
		return []string{string(doc)}, nil
	}

	var args []string
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, &BadPayloadError{Command: domain.CommandLaunchWorker, Reason: "expected an array of strings"}
	}
	return args, nil
}

func (d *Dispatcher) workerStatus(_ context.Context, _ json.RawMessage) (any, error) {
	name := d.launcher.WorkerName()
	pids, err := d.processManager.FindByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	running := make([]int, 0, len(pids))
	for _, pid := range pids {
		if d.processManager.IsRunning(pid) {
			running = append(running, pid)
		}
	}
	return domain.WorkerStatus{WorkerName: name, PIDs: running}, nil
}

// toResponseError maps a handler error to its envelope kind.
// CorruptConfigError is checked first because it unwraps to ValidationErrors.
func toResponseError(err error) *domain.ResponseError {
	var (
		corrupt    *domain.CorruptConfigError
		violations domain.ValidationErrors
		storage    *domain.StorageError
		badPayload *BadPayloadError
		launch     *LaunchError
	)

	switch {
	case errors.As(err, &corrupt):
		re := &domain.ResponseError{Kind: domain.KindCorruptConfig, Message: err.Error()}
		if len(corrupt.Violations) > 0 {
			re.Details = corrupt.Violations
		}
		return re
	case errors.As(err, &violations):
		return &domain.ResponseError{Kind: domain.KindValidation, Message: err.Error(), Details: violations}
	case errors.As(err, &storage):
		return &domain.ResponseError{Kind: domain.KindStorage, Message: err.Error()}
	case errors.As(err, &badPayload):
		return &domain.ResponseError{Kind: domain.KindBadPayload, Message: err.Error()}
	case errors.Is(err, ErrLaunchInFlight):
		return &domain.ResponseError{Kind: domain.KindLaunchInFlight, Message: err.Error()}
	case errors.As(err, &launch):
		return &domain.ResponseError{Kind: launchKind(launch.Result.Outcome), Message: err.Error(), Details: launch.Result}
	default:
		return &domain.ResponseError{Kind: domain.KindInternal, Message: err.Error()}
	}
}

func launchKind(outcome domain.LaunchOutcome) domain.ErrorKind {
	switch outcome {
	case domain.OutcomeNotFound:
		return domain.KindWorkerNotFound
	case domain.OutcomeSpawnFailed:
		return domain.KindSpawnFailed
	case domain.OutcomeCancelled:
		return domain.KindCancelled
	default:
		return domain.KindWorkerFailed
	}
}

func failure(re *domain.ResponseError) domain.CommandResponse {
	return domain.CommandResponse{Success: false, Error: re}
}

func isEmpty(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
