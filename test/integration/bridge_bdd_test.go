//go:build integration

package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/bridge"
	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
	"github.com/eliteGoblin/focusd/nagctl/test/fixtures"
)

var _ = Describe("Bridges", func() {
	var (
		tmpDir string
		worker *fixtures.FakeWorker
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("fake worker is a shell script")
		}
		var err error
		tmpDir, err = os.MkdirTemp("", "nagctl-bridge-*")
		Expect(err).NotTo(HaveOccurred())
		worker = fixtures.NewFakeWorker(tmpDir)
		_, err = worker.Install(domain.ModePackaged, fixtures.EchoArgsScript)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if worker != nil {
			worker.Cleanup()
		}
	})

	Describe("stdio", func() {
		It("should answer each request line with a tagged response", func() {
			dispatcher, _ := newDispatcher(worker, domain.ModePackaged)
			in := strings.NewReader(strings.Join([]string{
				`{"id":"save","command":"save-config","payload":` + scenarioConfig + `}`,
				`{"id":"bogus","command":"reboot"}`,
			}, "\n") + "\n")
			var out strings.Builder

			err := bridge.NewStdioServer(dispatcher, in, &out, zap.NewNop()).Serve(context.Background())
			Expect(err).NotTo(HaveOccurred())

			responses := map[string]map[string]any{}
			scanner := bufio.NewScanner(strings.NewReader(out.String()))
			for scanner.Scan() {
				var resp map[string]any
				Expect(json.Unmarshal(scanner.Bytes(), &resp)).To(Succeed())
				responses[resp["id"].(string)] = resp
			}

			Expect(responses).To(HaveLen(2))
			Expect(responses["save"]["success"]).To(BeTrue())
			Expect(responses["bogus"]["success"]).To(BeFalse())
			Expect(responses["bogus"]["error"].(map[string]any)["kind"]).To(Equal("unknown_command"))
		})
	})

	Describe("http", func() {
		It("should launch the worker through POST /v1/commands/launch-worker", func() {
			dispatcher, _ := newDispatcher(worker, domain.ModePackaged)
			srv := httptest.NewServer(bridge.NewHTTPServer("", dispatcher, zap.NewNop()).Routes())
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/v1/commands/launch-worker", "application/json",
				strings.NewReader(`["hello"]`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var envelope struct {
				Success bool                   `json:"success"`
				Data    domain.ExecutionResult `json:"data"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.Success).To(BeTrue())
			Expect(envelope.Data.Stdout).To(Equal("hello\n"))
			Expect(envelope.Data.Outcome).To(Equal(domain.OutcomeExited))
		})
	})
})
