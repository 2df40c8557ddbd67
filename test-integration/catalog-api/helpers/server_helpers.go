// Package helpers starts catalog-api servers and builds fixtures for the integration suite.
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	catalogapp "github.com/matrixhub/catalog-server/internal/app"
	"github.com/matrixhub/catalog-server/internal/auth"
	"github.com/matrixhub/catalog-server/internal/config"
)

// ServerTestHelper manages the catalog API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	address    string
	baseURL    string
	httpClient *http.Client
	app        *catalogapp.CatalogApp
}

// NewServerTestHelper creates a helper for a server on a free loopback port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	address, err := freeAddress()
	if err != nil {
		return nil, err
	}
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func freeAddress() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to reserve a port: %w", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

// StartServer builds the application from the config file and serves it in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		return err
	}

	app, err := catalogapp.NewCatalogApp(s.ctx,
		catalogapp.WithConfig(cfg),
		catalogapp.WithAddress(s.address),
		catalogapp.WithPasswordHasher(hasher),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			// WaitForServerReady reports the failure
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()
	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits until /readiness answers 200
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v
func (r *Response) Decode(v any) {
	gomega.ExpectWithOffset(1, json.Unmarshal(r.Body, v)).To(gomega.Succeed(), string(r.Body))
}

// Get requests path with an optional bearer token
func (s *ServerTestHelper) Get(path, token string) *Response {
	return s.do(http.MethodGet, path, token, nil)
}

// PostJSON posts body encoded as JSON, or an empty body when body is nil
func (s *ServerTestHelper) PostJSON(path string, body any) *Response {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())
	}
	return s.do(http.MethodPost, path, "", payload)
}

func (s *ServerTestHelper) do(method, path, token string, payload []byte) *Response {
	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, bytes.NewReader(payload))
	gomega.ExpectWithOffset(2, err).NotTo(gomega.HaveOccurred())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	gomega.ExpectWithOffset(2, err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	gomega.ExpectWithOffset(2, err).NotTo(gomega.HaveOccurred())

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
}

// ListEntityIDs returns the ids of GET /api/entities with the given query string
func (s *ServerTestHelper) ListEntityIDs(query string) []string {
	resp := s.Get("/api/entities"+query, "")
	gomega.ExpectWithOffset(1, resp.StatusCode).To(gomega.Equal(http.StatusOK), string(resp.Body))

	var summaries []struct {
		ID string `json:"id"`
	}
	gomega.ExpectWithOffset(1, json.Unmarshal(resp.Body, &summaries)).To(gomega.Succeed())
	ids := make([]string, len(summaries))
	for i, e := range summaries {
		ids[i] = e.ID
	}
	return ids
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}
