package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/utxochain/business/sys/validate"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/business/web/mid"
	"github.com/ardanlabs/utxochain/foundation/web"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Errors(t *testing.T) {
	type payment struct {
		Amount uint64 `json:"amount" validate:"gt=0"`
	}

	tt := []struct {
		name    string
		handler web.Handler
		status  int
		message string
		field   string
	}{
		{
			name: "trusted",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errs.NewTrusted(errors.New("bad input"), http.StatusBadRequest)
			},
			status:  http.StatusBadRequest,
			message: "bad input",
		},
		{
			name: "validation",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return validate.Check(payment{})
			},
			status:  http.StatusBadRequest,
			message: "data validation error",
			field:   "amount",
		},
		{
			name: "untrusted",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errors.New("database exploded")
			},
			status:  http.StatusInternalServerError,
			message: http.StatusText(http.StatusInternalServerError),
		},
		{
			name: "panic",
			handler: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				panic("boom")
			},
			status:  http.StatusInternalServerError,
			message: http.StatusText(http.StatusInternalServerError),
		},
	}

	t.Log("Given the need to map handler errors to responses.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the handler fails with a %s error.", testID, tst.name)
				{
					log := zap.NewNop().Sugar()
					shutdown := make(chan os.Signal, 1)

					app := web.NewApp(shutdown, mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())
					app.Handle(http.MethodGet, "v1", "/test", tst.handler)

					w := httptest.NewRecorder()
					app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/test", nil))

					if w.Code != tst.status {
						t.Fatalf("\t%s\tShould receive a status code of %d: %d", failed, tst.status, w.Code)
					}
					t.Logf("\t%s\tShould receive a status code of %d.", success, tst.status)

					var resp errs.Response
					if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
						t.Fatalf("\t%s\tShould be able to decode the response: %v", failed, err)
					}

					if resp.Error != tst.message {
						t.Fatalf("\t%s\tShould respond with %q: %q", failed, tst.message, resp.Error)
					}
					t.Logf("\t%s\tShould respond with %q.", success, tst.message)

					if tst.field != "" {
						if _, exists := resp.Fields[tst.field]; !exists {
							t.Fatalf("\t%s\tShould report the %s field: %v", failed, tst.field, resp.Fields)
						}
						t.Logf("\t%s\tShould report the %s field.", success, tst.field)
					}

					select {
					case <-shutdown:
						t.Fatalf("\t%s\tShould not signal a shutdown.", failed)
					default:
						t.Logf("\t%s\tShould not signal a shutdown.", success)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Cors(t *testing.T) {
	t.Log("Given the need to answer cross origin requests.")
	{
		t.Logf("\tTest 0:\tWhen the cors middleware wraps a route.")
		{
			h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}

			app := web.NewApp(make(chan os.Signal, 1), mid.Cors("*"))
			app.Handle(http.MethodGet, "", "/", h)

			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("\t%s\tShould set the allowed origin: %q", failed, got)
			}
			t.Logf("\t%s\tShould set the allowed origin.", success)
		}
	}
}
