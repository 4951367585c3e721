package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"coffeeshop/internal/handler"
)

func TestRouter_HealthAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := NewRouter(RouterDeps{
		KHQRHandler:     &handler.KHQRHandler{},
		CheckoutHandler: &handler.CheckoutHandler{},
		OrderHandler:    &handler.OrderHandler{},
		AllowedOrigins:  []string{"https://shop.example"},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	want := map[string]bool{
		"POST /v1/bakong/generate-khqr":                   true,
		"POST /v1/bakong/verify":                          true,
		"POST /v1/bakong/decode":                          true,
		"GET /v1/bakong/status":                           true,
		"POST /v1/checkout/bakong":                        true,
		"GET /v1/checkout/bakong/:checkoutID":             true,
		"POST /v1/checkout/bakong/:checkoutID/regenerate": true,
		"DELETE /v1/checkout/bakong/:checkoutID":          true,
		"POST /v1/orders":                                 true,
		"GET /v1/orders/:id":                              true,
	}
	for _, r := range router.Routes() {
		delete(want, r.Method+" "+r.Path)
	}
	for route := range want {
		t.Errorf("route %s not registered", route)
	}
}

func TestKeyspace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		cmd  redis.Cmder
		want string
	}{
		{redis.NewStringCmd(ctx, "get", "cache:khqr:verified:abc"), "cache"},
		{redis.NewCmd(ctx, "evalsha", "sha", 1, "lock:checkout:c1", "owner"), "lock"},
		{redis.NewStatusCmd(ctx, "ping"), "redis"},
		{redis.NewStringCmd(ctx, "get", "plainkey"), "redis"},
	}

	for _, tt := range tests {
		if got := keyspace(tt.cmd); got != tt.want {
			t.Errorf("%v: expected %q, got %q", tt.cmd.Args(), tt.want, got)
		}
	}
}
