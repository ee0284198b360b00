//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/internal/infra"
	"github.com/eliteGoblin/focusd/nagctl/internal/supervisor"
	"github.com/eliteGoblin/focusd/nagctl/internal/usecase"
	"github.com/eliteGoblin/focusd/nagctl/test/fixtures"
)

const scenarioConfig = `{"quietStart":"22:00","quietEnd":"06:00","blockedProcesses":["a.exe"],"messages":["hi"],"deterrentEnabled":false}`

// newDispatcher wires real components over the fake layout.
func newDispatcher(worker *fixtures.FakeWorker, mode domain.PackagingMode) (*usecase.Dispatcher, *infra.FileConfigStore) {
	appCtx := worker.AppContext(mode)
	logger := zap.NewNop()
	store := infra.NewFileConfigStore(appCtx, logger)
	sup := supervisor.NewSupervisor(appCtx, infra.NewFileSystemManager(), supervisor.DefaultConfig(), logger)
	picker := infra.NewDialogPicker([]string{"false"}, logger)
	d := usecase.NewDispatcher(store, sup, picker, infra.NewProcessManager(), usecase.DispatcherConfig{}, logger)
	return d, store
}

var _ = Describe("Save and launch", func() {
	var (
		tmpDir     string
		worker     *fixtures.FakeWorker
		dispatcher *usecase.Dispatcher
		store      *infra.FileConfigStore
		ctx        context.Context
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("fake worker is a shell script")
		}
		var err error
		tmpDir, err = os.MkdirTemp("", "nagctl-integration-*")
		Expect(err).NotTo(HaveOccurred())

		worker = fixtures.NewFakeWorker(tmpDir)
		dispatcher, store = newDispatcher(worker, domain.ModePackaged)
		ctx = context.Background()
	})

	AfterEach(func() {
		if worker != nil {
			worker.Cleanup()
		}
	})

	Describe("save-config", func() {
		Context("when the payload is valid", func() {
			It("should persist the normalized document and load it back", func() {
				resp := dispatcher.Dispatch(ctx, "save-config", json.RawMessage(scenarioConfig))
				Expect(resp.Success).To(BeTrue())

				saved := resp.Data.(domain.SavedConfig)
				Expect(saved.Path).To(Equal(store.Path()))

				loaded := dispatcher.Dispatch(ctx, "load-config", nil)
				Expect(loaded.Success).To(BeTrue())
				Expect(*loaded.Data.(*domain.Configuration)).To(Equal(saved.Config))
			})
		})

		Context("when quietStart is out of range", func() {
			It("should report the field and write nothing", func() {
				bad := `{"quietStart":"25:00","quietEnd":"06:00","blockedProcesses":["a.exe"],"messages":["hi"],"deterrentEnabled":false}`
				resp := dispatcher.Dispatch(ctx, "save-config", json.RawMessage(bad))

				Expect(resp.Success).To(BeFalse())
				Expect(resp.Error.Kind).To(Equal(domain.KindValidation))
				violations := resp.Error.Details.(domain.ValidationErrors)
				Expect(violations.Fields()).To(Equal([]string{"quietStart"}))
				Expect(violations[0].Message).To(ContainSubstring("HH:mm"))

				_, err := os.Stat(store.Path())
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})
	})

	Describe("load-config", func() {
		Context("when nothing has been saved", func() {
			It("should return the defaults", func() {
				resp := dispatcher.Dispatch(ctx, "load-config", nil)
				Expect(resp.Success).To(BeTrue())
				Expect(resp.Data.(*domain.Configuration).QuietStart).To(Equal("22:00"))
			})
		})

		Context("when the document is damaged", func() {
			It("should report corruption instead of defaults", func() {
				Expect(worker.CorruptConfig(`{"quietStart":`)).To(Succeed())

				resp := dispatcher.Dispatch(ctx, "load-config", nil)
				Expect(resp.Success).To(BeFalse())
				Expect(resp.Error.Kind).To(Equal(domain.KindCorruptConfig))
			})
		})
	})

	Describe("launch-worker", func() {
		Context("when the worker is not installed", func() {
			It("should fail with worker_not_found and the resolved path", func() {
				resp := dispatcher.Dispatch(ctx, "launch-worker", json.RawMessage(`["{}"]`))

				Expect(resp.Success).To(BeFalse())
				Expect(resp.Error.Kind).To(Equal(domain.KindWorkerNotFound))
				result := resp.Error.Details.(domain.ExecutionResult)
				Expect(result.ResolvedPath).To(Equal(worker.AppContext(domain.ModePackaged).WorkerPath()))
				Expect(result.ExitCode).To(BeNil())
			})
		})

		Context("when launched with the saved configuration", func() {
			It("should hand the document to the worker as its only argument", func() {
				_, err := worker.Install(domain.ModePackaged, fixtures.EchoArgsScript)
				Expect(err).NotTo(HaveOccurred())
				Expect(dispatcher.Dispatch(ctx, "save-config", json.RawMessage(scenarioConfig)).Success).To(BeTrue())

				resp := dispatcher.Dispatch(ctx, "launch-worker", nil)
				Expect(resp.Success).To(BeTrue())

				result := resp.Data.(domain.ExecutionResult)
				Expect(*result.ExitCode).To(Equal(0))
				Expect(result.Stderr).To(Equal("nagd: armed\n"))

				var passed domain.Configuration
				Expect(json.Unmarshal([]byte(result.Stdout), &passed)).To(Succeed())
				Expect(passed.BlockedProcesses).To(Equal([]string{"a.exe"}))
			})
		})

		Context("when the worker rejects its input", func() {
			It("should report worker_failed with the exit code and output", func() {
				_, err := worker.Install(domain.ModePackaged, fixtures.RejectScript)
				Expect(err).NotTo(HaveOccurred())

				resp := dispatcher.Dispatch(ctx, "launch-worker", json.RawMessage(`["{}"]`))
				Expect(resp.Success).To(BeFalse())
				Expect(resp.Error.Kind).To(Equal(domain.KindWorkerFailed))

				result := resp.Error.Details.(domain.ExecutionResult)
				Expect(*result.ExitCode).To(Equal(2))
				Expect(result.Stderr).To(ContainSubstring("quietEnd"))
			})
		})

		Context("when the worker floods stderr", func() {
			It("should capture all of it without stalling", func() {
				_, err := worker.Install(domain.ModePackaged, fixtures.NoisyScript(2<<20))
				Expect(err).NotTo(HaveOccurred())

				resp := dispatcher.Dispatch(ctx, "launch-worker", json.RawMessage(`[]`))
				Expect(resp.Success).To(BeTrue())
				result := resp.Data.(domain.ExecutionResult)
				Expect(result.Stderr).To(HaveLen(2 << 20))
				Expect(result.Stdout).To(Equal("done\n"))
			})
		})

		Context("in development mode", func() {
			It("should launch the sibling build output", func() {
				devDispatcher, _ := newDispatcher(worker, domain.ModeDevelopment)
				path, err := worker.Install(domain.ModeDevelopment, fixtures.EchoArgsScript)
				Expect(err).NotTo(HaveOccurred())

				resp := devDispatcher.Dispatch(ctx, "launch-worker", json.RawMessage(`["dev"]`))
				Expect(resp.Success).To(BeTrue())
				result := resp.Data.(domain.ExecutionResult)
				Expect(result.ResolvedPath).To(Equal(path))
				Expect(result.Stdout).To(Equal("dev\n"))
			})
		})
	})

	Describe("select-file", func() {
		It("should return null when the dialog is dismissed", func() {
			resp := dispatcher.Dispatch(ctx, "select-file", nil)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Data).To(BeNil())
		})
	})
})
