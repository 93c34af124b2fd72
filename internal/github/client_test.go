package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/github"
	"basegraph.app/pulse/internal/model"
)

const feed = `[
  {"id":"2","type":"PullRequestEvent","actor":{"id":1,"login":"octocat"},"repo":{"id":9,"name":"a/b"},
   "payload":{"action":"opened","number":5},"created_at":"2024-01-01T10:05:00Z"},
  {"id":"1","type":"WatchEvent","actor":{"id":1,"login":"octocat"},"repo":{"id":9,"name":"a/b"},
   "payload":{"action":"started"},"created_at":"2024-01-01T10:00:00Z"}
]`

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
		mu      sync.Mutex
		lastReq *http.Request
		cfg     config.GitHubConfig
	)

	respond := func(h http.HandlerFunc) {
		mu.Lock()
		defer mu.Unlock()
		handler = h
	}

	received := func() *http.Request {
		mu.Lock()
		defer mu.Unlock()
		return lastReq
	}

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("[]"))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			lastReq = r.Clone(context.Background())
			h := handler
			mu.Unlock()
			h(w, r)
		}))
		DeferCleanup(server.Close)

		cfg = config.GitHubConfig{
			EventsURL: server.URL + "/events",
			UserAgent: "pulse-test",
			PerPage:   100,
			Timeout:   time.Second,
		}
	})

	client := func() *github.Client {
		return github.NewClient(cfg, server.Client())
	}

	It("decodes a page of events with its ETag", func() {
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("X-Poll-Interval", "60")
			_, _ = w.Write([]byte(feed))
		})

		result, err := client().Fetch(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(github.StatusSuccess))
		Expect(result.CacheToken).To(Equal(`"abc"`))
		Expect(result.PollInterval).To(Equal(time.Minute))
		Expect(result.Events).To(HaveLen(2))
		Expect(result.Events[0].ID).To(Equal("2"))
		Expect(result.Events[0].Type).To(Equal(model.EventTypePullRequest))
		Expect(result.Events[0].Repo.Name).To(Equal("a/b"))
		Expect(result.Events[0].CreatedAt).To(Equal(time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)))
	})

	It("sends the conditional and identifying headers", func() {
		cfg.Token = "secret"
		_, err := client().Fetch(ctx, `"abc"`)
		Expect(err).NotTo(HaveOccurred())

		req := received()
		Expect(req.URL.Path).To(Equal("/events"))
		Expect(req.URL.Query().Get("per_page")).To(Equal("100"))
		Expect(req.Header.Get("If-None-Match")).To(Equal(`"abc"`))
		Expect(req.Header.Get("User-Agent")).To(Equal("pulse-test"))
		Expect(req.Header.Get("Authorization")).To(Equal("Bearer secret"))
	})

	It("omits auth and conditional headers when unset", func() {
		_, err := client().Fetch(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		req := received()
		Expect(req.Header.Get("Authorization")).To(BeEmpty())
		Expect(req.Header.Get("If-None-Match")).To(BeEmpty())
	})

	It("reports 304 as not modified and keeps the token", func() {
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		})
		result, err := client().Fetch(ctx, `"abc"`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(github.StatusNotModified))
		Expect(result.CacheToken).To(Equal(`"abc"`))
		Expect(result.Events).To(BeEmpty())
	})

	It("reports 429 with Retry-After as rate limited", func() {
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		result, err := client().Fetch(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(github.StatusRateLimited))
		Expect(result.RetryAfter).To(Equal(2 * time.Minute))
	})

	It("reports an exhausted 403 as rate limited until the reset", func() {
		reset := time.Now().Add(5 * time.Minute).Unix()
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			w.WriteHeader(http.StatusForbidden)
		})
		result, err := client().Fetch(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Status).To(Equal(github.StatusRateLimited))
		Expect(result.RetryAfter).To(BeNumerically("~", 5*time.Minute, 5*time.Second))
	})

	It("treats a plain 403 as a transport error", func() {
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("forbidden"))
		})
		_, err := client().Fetch(ctx, "")
		Expect(github.IsTransportError(err)).To(BeTrue())
		var te *github.TransportError
		Expect(errors.As(err, &te)).To(BeTrue())
		Expect(te.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("treats server errors and bad bodies as transport errors", func() {
		respond(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client().Fetch(ctx, "")
		Expect(github.IsTransportError(err)).To(BeTrue())

		respond(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		})
		_, err = client().Fetch(ctx, "")
		Expect(github.IsTransportError(err)).To(BeTrue())
	})

	It("treats a timeout as a transport error", func() {
		respond(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := client().Fetch(timeoutCtx, "")
		Expect(github.IsTransportError(err)).To(BeTrue())
	})
})
