package integration

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/matrixhub/catalog-server/test-integration/catalog-api/helpers"
)

// catalogHost serves a mutable catalog document
type catalogHost struct {
	mu       sync.Mutex
	document []byte
	status   int
}

func (h *catalogHost) set(status int, document []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.document = document
}

func (h *catalogHost) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(h.status)
	_, _ = w.Write(h.document)
}

var _ = Describe("URL-backed catalog", Label("url"), func() {
	var (
		tempDir string
		host    *catalogHost
		remote  *httptest.Server
		server  *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = specDir()
		host = &catalogHost{}
		host.set(http.StatusOK, helpers.MarshalCatalog(helpers.CreateTestEntities()))
		remote = httptest.NewServer(host)

		configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			StorageType:     "url",
			CatalogURL:      remote.URL + "/catalog.yaml",
			RefreshInterval: "200ms",
		})

		var err error
		server, err = helpers.NewServerTestHelper(ctx, configPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		if server != nil {
			Expect(server.StopServer()).To(Succeed())
		}
		remote.Close()
	})

	It("should serve the remote catalog", func() {
		Expect(server.ListEntityIDs("")).To(HaveLen(4))

		resp := server.Get("/api/entities/mcp-database-001", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("should pick up remote changes", func() {
		host.set(http.StatusOK, helpers.MarshalCatalog(helpers.CreateTestEntities()[:1]))

		Eventually(func() []string {
			return server.ListEntityIDs("")
		}, 5*time.Second, 100*time.Millisecond).Should(Equal([]string{"agent-autogpt-001"}))
	})

	It("should keep serving when the remote fails permanently", func() {
		host.set(http.StatusNotFound, []byte("gone"))

		Consistently(func() int {
			return len(server.ListEntityIDs(""))
		}, time.Second, 100*time.Millisecond).Should(Equal(4))
	})
})
