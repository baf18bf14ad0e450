//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/pkg/pocclient"
)

func TestServer_StartupAndShutdownLogging(t *testing.T) {
	s := startPortal(t)
	s.stop()

	logs := s.logs(t)
	if missing, ok := containsAll(logs,
		"configuration loaded",
		"logger initialized",
		"store initialized",
		"router initialized",
		"server starting",
		"risk snapshot worker disabled",
		"shutdown initiated",
		"shutdown complete",
	); !ok {
		t.Errorf("log missing %q:\n%s", missing, logs)
	}
	if strings.Contains(logs, e2eAPIKey) {
		t.Error("API key leaked into logs")
	}
}

func TestServer_RejectsMissingKey(t *testing.T) {
	s := startPortal(t)

	resp, err := http.Get(s.baseURL() + "/api/v1/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestServer_POCLifecycle(t *testing.T) {
	s := startPortal(t)
	c := s.client(t)
	ctx := context.Background()

	reg, err := c.Register(ctx, pocclient.RegisterRequest{
		SAName:   "Grace Hopper",
		SAEmail:  "grace@example.com",
		Prospect: "Initech",
		Product:  "Gateway",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !reg.IsNew || !reg.UserCreated {
		t.Errorf("Register = %+v, want new POC and new user", reg)
	}

	if _, err := c.Heartbeat(ctx, reg.POCUID, []pocclient.HeartbeatUseCase{
		{Code: "UC-10", Title: "SSO"},
		{Code: "UC-11", Title: "Audit log"},
	}); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if _, err := c.CompleteUseCase(ctx, reg.POCUID, "UC-10", true); err != nil {
		t.Fatalf("CompleteUseCase: %v", err)
	}
	if _, err := c.Rate(ctx, reg.POCUID, "UC-10", 5); err != nil {
		t.Fatalf("Rate: %v", err)
	}

	cls, err := c.Classification(ctx, reg.POCUID, time.Time{})
	if err != nil {
		t.Fatalf("Classification: %v", err)
	}
	if cls.Classification.Lifecycle != lifecycle.StateActive {
		t.Errorf("lifecycle = %q, want active", cls.Classification.Lifecycle)
	}
	if cls.Classification.Progress.Completed != 1 || cls.Classification.Progress.Total != 2 {
		t.Errorf("progress = %+v, want 1/2", cls.Classification.Progress)
	}

	// A restart on the same data keeps the POC and its registration key.
	s.stop()
	s = startPortalOn(t, s.dataDir)
	c = s.client(t)

	again, err := c.Register(ctx, pocclient.RegisterRequest{SAEmail: "grace@example.com", Prospect: "Initech", Product: "Gateway"})
	if err != nil {
		t.Fatalf("Register after restart: %v", err)
	}
	if again.IsNew || again.POCUID != reg.POCUID {
		t.Errorf("Register after restart = %+v, want existing %s", again, reg.POCUID)
	}

	s.stop()
	out, err := s.cli(t, "classify", reg.POCUID)
	if err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}
	if missing, ok := containsAll(out, reg.POCUID, "Initech - Gateway", "1/2"); !ok {
		t.Errorf("classify output missing %q:\n%s", missing, out)
	}

	out, err = s.cli(t, "dashboard", "--owner", "grace@example.com")
	if err != nil {
		t.Fatalf("dashboard: %v\n%s", err, out)
	}
	if !strings.Contains(out, reg.POCUID) {
		t.Errorf("dashboard output missing %s:\n%s", reg.POCUID, out)
	}
}
