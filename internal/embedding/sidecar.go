package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	python "github.com/kluctl/go-embed-python/python"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// Sidecar manages a local embedding subprocess and speaks its HTTP
// protocol, generalizing the teacher's internal/embed/local.go from a
// single downloaded binary to an embedded-Python runtime that can run
// any of the preset models. The process lifecycle (start, health poll,
// SIGTERM-then-SIGKILL close) is kept exactly as the teacher does it.
type Sidecar struct {
	embedded *python.EmbeddedPython
	profile  Profile
	port     int
	cmd      *exec.Cmd
	client   *http.Client

	mu          sync.Mutex
	initialized bool
}

// NewSidecar prepares (but does not start) a sidecar for profile.
func NewSidecar(profile Profile) (*Sidecar, error) {
	port, err := freePort()
	if err != nil {
		return nil, cerr.New("embedding.NewSidecar", cerr.Internal, err)
	}
	return &Sidecar{
		profile: profile,
		port:    port,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Start embeds a Python runtime, launches the sidecar's embed server
// script against it, and waits for the server to report healthy.
func (s *Sidecar) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	embedded, err := python.NewEmbeddedPythonWithTmpDir("codeindex-embed", true)
	if err != nil {
		return cerr.New("embedding.Sidecar.Start", cerr.EmbeddingFailure, err)
	}
	s.embedded = embedded

	s.cmd = embedded.PythonCmd(
		"-m", "codeindex_embed_server",
		"--port", fmt.Sprintf("%d", s.port),
		"--model", s.profile.Model,
		"--device", string(s.profile.Device),
		"--quantization", string(s.profile.Quantization),
	)
	s.cmd.Stdout = os.Stdout
	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return cerr.New("embedding.Sidecar.Start", cerr.EmbeddingFailure, fmt.Errorf("start process: %w", err))
	}

	if err := s.waitForHealthy(ctx, 60*time.Second); err != nil {
		return cerr.New("embedding.Sidecar.Start", cerr.EmbeddingFailure, err)
	}

	s.initialized = true
	return nil
}

func (s *Sidecar) isHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL(), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *Sidecar) waitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for embedding sidecar")
		case <-ticker.C:
			if s.isHealthy() {
				return nil
			}
		}
	}
}

type sidecarEmbedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode"`
}

type sidecarEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends one batch of texts to the sidecar and returns their vectors
// in the same order. Start must be called first. Calls are serialized: the
// sidecar handles one batch at a time.
func (s *Sidecar) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.NotInitialized, fmt.Errorf("sidecar not started"))
	}

	body, err := json.Marshal(sidecarEmbedRequest{Texts: texts, Mode: string(mode)})
	if err != nil {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.Internal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.embedURL(), bytes.NewReader(body))
	if err != nil {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.TransientIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.EmbeddingFailure, fmt.Errorf("sidecar returned status %d", resp.StatusCode))
	}

	var decoded sidecarEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, cerr.New("embedding.Sidecar.Embed", cerr.Internal, fmt.Errorf("decode response: %w", err))
	}
	return decoded.Embeddings, nil
}

// Close stops the sidecar process: SIGTERM, then SIGKILL after 5 seconds
// if it has not exited.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	var closeErr error
	select {
	case closeErr = <-done:
	case <-time.After(5 * time.Second):
		closeErr = s.cmd.Process.Kill()
	}

	if s.embedded != nil {
		s.embedded.Cleanup()
	}
	s.initialized = false
	return closeErr
}

func (s *Sidecar) healthURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", s.port)
}

func (s *Sidecar) embedURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/embed", s.port)
}

// freePort asks the OS for an unused TCP port, mirroring how the teacher
// pins a single DefaultEmbedServerPort but adapted so multiple profiles
// (and tests) can run sidecars concurrently without colliding.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
