package handler_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/pulse/internal/http/handler"
	"basegraph.app/pulse/internal/model"
)

type mockDeadLetterLister struct {
	listFn func(ctx context.Context, limit int32) ([]model.DeadLetter, error)
}

func (m *mockDeadLetterLister) List(ctx context.Context, limit int32) ([]model.DeadLetter, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

var _ = Describe("DeadLetterHandler", func() {
	var (
		router *gin.Engine
		lister *mockDeadLetterLister
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		lister = &mockDeadLetterLister{}
		router.GET("/admin/dead-letters", handler.NewDeadLetterHandler(lister).List)
	})

	It("lists dead letters with the default limit", func() {
		var limit int32
		lister.listFn = func(_ context.Context, l int32) ([]model.DeadLetter, error) {
			limit = l
			return []model.DeadLetter{{
				ID:        7,
				MessageID: "1-0",
				EventID:   "42",
				Attempts:  3,
				Error:     "db down",
				CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			}}, nil
		}

		w, resp := get(router, "/admin/dead-letters")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(limit).To(Equal(int32(50)))
		items := resp["dead_letters"].([]any)
		Expect(items).To(HaveLen(1))
		Expect(items[0]).To(HaveKeyWithValue("id", "7"))
		Expect(items[0]).To(HaveKeyWithValue("attempts", float64(3)))
	})

	It("rejects limits out of range", func() {
		w, resp := get(router, "/admin/dead-letters?limit=0")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(resp["field"]).To(Equal("limit"))
	})

	It("hides storage errors", func() {
		lister.listFn = func(context.Context, int32) ([]model.DeadLetter, error) {
			return nil, errors.New("db down")
		}
		w, resp := get(router, "/admin/dead-letters")
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(resp["error"]).To(Equal("failed to list dead letters"))
	})
})
