//go:build e2e

package e2e

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/pocportal/pkg/pocclient"
)

const e2eAPIKey = "e2e-test-api-key"

// portalServer manages a running pocportal server process.
type portalServer struct {
	cmd     *exec.Cmd
	dataDir string
	dbPath  string
	address string
	logFile string
	logFd   *os.File
}

// startPortal launches the binary on a fresh data directory and waits for
// it to become healthy. Configuration is entirely through the environment.
func startPortal(t *testing.T) *portalServer {
	t.Helper()
	requirePortal(t)

	dataDir := t.TempDir()
	return startPortalOn(t, dataDir)
}

func startPortalOn(t *testing.T, dataDir string) *portalServer {
	t.Helper()

	port := freePort(t)
	s := &portalServer{
		dataDir: dataDir,
		dbPath:  filepath.Join(dataDir, "pocportal.db"),
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: filepath.Join(dataDir, fmt.Sprintf("pocportal-%d.log", port)),
	}

	cmd := exec.Command(portalBin)
	cmd.Env = append(s.env(),
		fmt.Sprintf("POCPORTAL_PORT=%d", port),
		"POCPORTAL_API_SECRET="+e2eAPIKey,
		"POCPORTAL_RISK_SNAPSHOT_SCHEDULE=off",
		"POCPORTAL_LOG_LEVEL=debug",
	)

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	s.logFd = lf
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start pocportal: %v", err)
	}
	s.cmd = cmd

	t.Cleanup(s.stop)

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("pocportal not healthy: %v\n%s", err, s.logs(t))
	}
	return s
}

// env is the environment shared by the server and offline CLI runs.
func (s *portalServer) env() []string {
	return append(os.Environ(),
		"POCPORTAL_DB_PATH="+s.dbPath,
		"POCPORTAL_CONFIG_PATH="+filepath.Join(s.dataDir, "nonexistent.yaml"),
		"POCPORTAL_TIMEZONE=UTC",
	)
}

// stop sends SIGINT and waits for the graceful shutdown to finish.
func (s *portalServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
	if s.logFd != nil {
		s.logFd.Close()
		s.logFd = nil
	}
}

func (s *portalServer) baseURL() string {
	return "http://" + s.address
}

func (s *portalServer) client(t *testing.T) *pocclient.Client {
	t.Helper()
	c, err := pocclient.New(pocclient.Config{BaseURL: s.baseURL(), APIKey: e2eAPIKey, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("pocclient.New: %v", err)
	}
	return c
}

// cli runs an offline subcommand against the server's database.
func (s *portalServer) cli(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(portalBin, args...)
	cmd.Env = s.env()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (s *portalServer) logs(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(s.logFile)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *portalServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("pocportal not healthy after %s", timeout)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func containsAll(s string, subs ...string) (string, bool) {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return sub, false
		}
	}
	return "", true
}
