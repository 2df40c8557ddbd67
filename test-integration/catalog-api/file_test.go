package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/matrixhub/catalog-server/test-integration/catalog-api/helpers"
)

var _ = Describe("File-backed catalog", Label("file"), func() {
	var (
		tempDir     string
		catalogPath string
		server      *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = specDir()
		catalogPath = helpers.WriteCatalogYAML(tempDir, helpers.CreateTestEntities())
		configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			StorageType:     "file",
			CatalogPath:     catalogPath,
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
	})

	Context("listing entities", func() {
		It("should rank every entity by quality score", func() {
			Expect(server.ListEntityIDs("")).To(Equal([]string{
				"agent-autogpt-001",
				"mcp-database-001",
				"agent-supportbot-001",
				"tool-webscraper-001",
			}))
		})

		It("should report the score and empty arrays in summaries", func() {
			resp := server.Get("/api/entities?type=tool", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summaries []map[string]any
			resp.Decode(&summaries)
			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0]).To(HaveKeyWithValue("id", "tool-webscraper-001"))
			Expect(summaries[0]).To(HaveKeyWithValue("score", 82.3))
			Expect(summaries[0]).To(HaveKeyWithValue("capabilities", BeEmpty()))
		})

		It("should filter by type, text and protocol", func() {
			Expect(server.ListEntityIDs("?type=agent")).To(Equal([]string{"agent-autogpt-001", "agent-supportbot-001"}))
			Expect(server.ListEntityIDs("?q=postgresql")).To(Equal([]string{"mcp-database-001"}))
			Expect(server.ListEntityIDs("?q=SCRAPING")).To(Equal([]string{"tool-webscraper-001"}))
			Expect(server.ListEntityIDs("?protocol=a2a")).To(ConsistOf("agent-autogpt-001", "agent-supportbot-001"))
			Expect(server.ListEntityIDs("?type=agent&protocol=mcp")).To(Equal([]string{"agent-autogpt-001"}))
			Expect(server.ListEntityIDs("?q=nothing-matches-this")).To(BeEmpty())
		})

		It("should page with limit and offset", func() {
			Expect(server.ListEntityIDs("?limit=2")).To(Equal([]string{"agent-autogpt-001", "mcp-database-001"}))
			Expect(server.ListEntityIDs("?limit=2&offset=2")).To(Equal([]string{"agent-supportbot-001", "tool-webscraper-001"}))
			Expect(server.ListEntityIDs("?offset=10")).To(BeEmpty())
		})

		It("should reject out of range parameters", func() {
			for _, query := range []string{"?limit=0", "?limit=101", "?offset=-1", "?limit=ten", "?type=robot"} {
				resp := server.Get("/api/entities"+query, "")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), query)

				var body map[string]any
				resp.Decode(&body)
				Expect(body).To(HaveKey("error"), query)
				Expect(body).To(HaveKey("details"), query)
			}
		})
	})

	Context("getting an entity", func() {
		It("should return the full record", func() {
			resp := server.Get("/api/entities/tool-webscraper-001", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var entity map[string]any
			resp.Decode(&entity)
			Expect(entity).To(HaveKeyWithValue("id", "tool-webscraper-001"))
			Expect(entity).To(HaveKeyWithValue("type", "tool"))
			Expect(entity).To(HaveKeyWithValue("quality_score", 82.3))
			Expect(entity).To(HaveKeyWithValue("protocols", ConsistOf("mcp@0.1")))
			Expect(entity).To(HaveKeyWithValue("manifests", HaveKey("mcp@0.1")))
			Expect(entity).To(HaveKeyWithValue("license", BeNil()))
		})

		It("should return 404 for an unknown id", func() {
			resp := server.Get("/api/entities/does-not-exist", "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.Body).To(MatchJSON(`{"error":"Entity not found"}`))
		})
	})

	Context("when the catalog file changes", func() {
		It("should serve the new catalog after a refresh", func() {
			entities := helpers.CreateTestEntities()
			entities = append(entities, helpers.CatalogEntity{
				UID: "tool-translator-001", Type: "tool", Name: "Translator", Version: "0.1.0",
				QualityScore: 99,
			})
			helpers.WriteCatalogYAML(tempDir, entities)

			Eventually(func() []string {
				return server.ListEntityIDs("?limit=1")
			}, 5*time.Second, 100*time.Millisecond).Should(Equal([]string{"tool-translator-001"}))
		})

		It("should keep the previous snapshot when the file becomes invalid", func() {
			Expect(writeFile(catalogPath, "entities: [{uid: broken}]\n")).To(Succeed())

			Consistently(func() int {
				return len(server.ListEntityIDs(""))
			}, time.Second, 100*time.Millisecond).Should(Equal(4))
		})
	})

	Context("system endpoints", func() {
		It("should describe the service", func() {
			resp := server.Get("/", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var info map[string]any
			resp.Decode(&info)
			Expect(info).To(HaveKeyWithValue("name", "Integration Catalog"))
			Expect(info).To(HaveKeyWithValue("environment", "test"))
		})

		It("should serve the OpenAPI document", func() {
			resp := server.Get("/openapi.json", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var doc map[string]any
			resp.Decode(&doc)
			Expect(doc).To(HaveKey("openapi"))
			Expect(doc).To(HaveKeyWithValue("paths", HaveKey("/api/entities")))
		})
	})
})
