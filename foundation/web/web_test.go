package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/web"
)

func Test_App(t *testing.T) {
	shutdown := make(chan os.Signal, 1)

	var order []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	app := web.NewApp(shutdown, mw("app"))

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if web.GetTraceID(ctx) == "" {
			return errors.New("missing trace id")
		}

		var body struct {
			Name string `json:"name"`
		}
		if err := web.Decode(r, &body); err != nil {
			return err
		}

		return web.Respond(ctx, w, map[string]string{"id": web.Param(r, "id"), "name": body.Name}, http.StatusOK)
	}
	app.Handle(http.MethodPost, "v1", "/items/:id", h, mw("route"))

	r := httptest.NewRequest(http.MethodPost, "/v1/items/42", strings.NewReader(`{"name":"bill"}`))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Should receive a 200 status code: %d", w.Code)
	}

	if got := w.Body.String(); got != `{"id":"42","name":"bill"}` {
		t.Fatalf("Should receive the param and body back: %s", got)
	}

	if strings.Join(order, ",") != "app,route" {
		t.Fatalf("Should run app middleware before route middleware: %v", order)
	}

	r = httptest.NewRequest(http.MethodPost, "/v1/items/42", strings.NewReader(`{"bad":true}`))
	app.ServeHTTP(httptest.NewRecorder(), r)

	select {
	case <-shutdown:
	default:
		t.Fatalf("Should signal shutdown when an error reaches the app.")
	}
}
