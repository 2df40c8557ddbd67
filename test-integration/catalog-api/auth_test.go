package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/matrixhub/catalog-server/test-integration/catalog-api/helpers"
)

type session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	IsGuest     bool   `json:"is_guest"`
	AvatarURL   string `json:"avatar_url"`
}

func startAuthServer(dir string, opts helpers.ConfigOptions) *helpers.ServerTestHelper {
	opts.StorageType = "file"
	opts.CatalogPath = helpers.WriteCatalogYAML(dir, helpers.CreateTestEntities())
	configPath := helpers.WriteConfigYAML(dir, opts)

	server, err := helpers.NewServerTestHelper(ctx, configPath)
	Expect(err).NotTo(HaveOccurred())
	Expect(server.StartServer()).To(Succeed())
	server.WaitForServerReady(10 * time.Second)
	return server
}

var _ = Describe("Demo authentication", Label("auth"), func() {
	var server *helpers.ServerTestHelper

	AfterEach(func() {
		if server != nil {
			Expect(server.StopServer()).To(Succeed())
			server = nil
		}
	})

	Context("with opaque tokens", func() {
		BeforeEach(func() {
			server = startAuthServer(specDir(), helpers.ConfigOptions{})
		})

		It("should log in the demo accounts", func() {
			for username, password := range map[string]string{"Unit-734": "password123", "demo": "demo123"} {
				resp := server.PostJSON("/api/auth/login", map[string]string{"username": username, "password": password})
				Expect(resp.StatusCode).To(Equal(http.StatusOK), username)

				var sess session
				resp.Decode(&sess)
				Expect(sess.UserID).To(Equal(username))
				Expect(sess.TokenType).To(Equal("bearer"))
				Expect(sess.AccessToken).NotTo(BeEmpty())
				Expect(sess.IsGuest).To(BeFalse())
				Expect(sess.AvatarURL).NotTo(BeEmpty())
			}
		})

		It("should reject a wrong password and an unknown user alike", func() {
			wrong := server.PostJSON("/api/auth/login", map[string]string{"username": "demo", "password": "nope"})
			unknown := server.PostJSON("/api/auth/login", map[string]string{"username": "nobody", "password": "nope"})

			Expect(wrong.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(unknown.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(wrong.Body).To(MatchJSON(unknown.Body))
		})

		It("should reject a login without a body", func() {
			resp := server.PostJSON("/api/auth/login", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should register a new agent once", func() {
			req := map[string]string{"agent_id": "agent-int-1", "email": "agent@example.com", "password": "s3cret!"}

			resp := server.PostJSON("/api/auth/register", req)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated), string(resp.Body))
			var sess session
			resp.Decode(&sess)
			Expect(sess.UserID).To(Equal("agent-int-1"))

			By("logging in with the new credentials")
			login := server.PostJSON("/api/auth/login", map[string]string{"username": "agent-int-1", "password": "s3cret!"})
			Expect(login.StatusCode).To(Equal(http.StatusOK))

			By("registering the same id again")
			again := server.PostJSON("/api/auth/register", req)
			Expect(again.StatusCode).To(Equal(http.StatusConflict))
			Expect(again.Body).To(MatchJSON(`{"error":"Agent ID already registered. Please choose a different ID."}`))
		})

		It("should validate registration input", func() {
			resp := server.PostJSON("/api/auth/register", map[string]string{"agent_id": "a", "email": "not-an-email", "password": "123"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body struct {
				Details []struct {
					Field string `json:"field"`
				} `json:"details"`
			}
			resp.Decode(&body)
			fields := make([]string, 0, len(body.Details))
			for _, d := range body.Details {
				fields = append(fields, d.Field)
			}
			Expect(fields).To(ConsistOf("agent_id", "email", "password"))
		})

		It("should issue distinct guest sessions", func() {
			first := server.PostJSON("/api/auth/guest", nil)
			second := server.PostJSON("/api/auth/guest", map[string]string{"session_id": "ignored"})
			Expect(first.StatusCode).To(Equal(http.StatusOK))
			Expect(second.StatusCode).To(Equal(http.StatusOK))

			var a, b session
			first.Decode(&a)
			second.Decode(&b)
			Expect(a.IsGuest).To(BeTrue())
			Expect(a.UserID).To(HavePrefix("guest-"))
			Expect(a.UserID).NotTo(Equal(b.UserID))

			By("looking up the guest profile")
			profile := server.Get("/api/auth/profile/"+a.UserID, "")
			Expect(profile.StatusCode).To(Equal(http.StatusOK))
			var p map[string]any
			profile.Decode(&p)
			Expect(p).To(HaveKeyWithValue("id", a.UserID))
			Expect(p).To(HaveKeyWithValue("email", BeNil()))
		})

		It("should return profiles of registered users", func() {
			resp := server.Get("/api/auth/profile/Unit-734", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var p map[string]any
			resp.Decode(&p)
			Expect(p).To(HaveKeyWithValue("id", "Unit-734"))
			Expect(p).To(HaveKeyWithValue("email", Not(BeEmpty())))
			Expect(p).NotTo(HaveKey("password_hash"))

			missing := server.Get("/api/auth/profile/nobody-here", "")
			Expect(missing.StatusCode).To(Equal(http.StatusNotFound))
			Expect(missing.Body).To(MatchJSON(`{"error":"User not found"}`))
		})

		It("should acknowledge logout", func() {
			resp := server.PostJSON("/api/auth/logout", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Body).To(MatchJSON(`{"message":"Logged out successfully","status":"ok"}`))
		})
	})

	Context("with enforced jwt tokens", func() {
		BeforeEach(func() {
			dir := specDir()
			server = startAuthServer(dir, helpers.ConfigOptions{
				SigningKeyFile: helpers.WriteSigningKey(dir),
				Enforce:        true,
			})
		})

		It("should require a bearer token for the catalog", func() {
			resp := server.Get("/api/entities", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(HavePrefix("Bearer realm="))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring(`error="invalid_request"`))

			bad := server.Get("/api/entities", "not-a-jwt")
			Expect(bad.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(bad.Header.Get("WWW-Authenticate")).To(ContainSubstring(`error="invalid_token"`))
		})

		It("should accept a token issued by login", func() {
			login := server.PostJSON("/api/auth/login", map[string]string{"username": "demo", "password": "demo123"})
			Expect(login.StatusCode).To(Equal(http.StatusOK))
			var sess session
			login.Decode(&sess)

			resp := server.Get("/api/entities", sess.AccessToken)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should keep the probes and auth endpoints public", func() {
			Expect(server.Get("/", "").StatusCode).To(Equal(http.StatusOK))
			Expect(server.Get("/health", "").StatusCode).To(Equal(http.StatusOK))
			Expect(server.PostJSON("/api/auth/guest", nil).StatusCode).To(Equal(http.StatusOK))
		})
	})
})
