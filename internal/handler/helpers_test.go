package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/config"
	"github.com/kiwari-pos/order-desk/internal/desk"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/router"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/kiwari-pos/order-desk/internal/ws"
	"go.uber.org/zap"
)

// --- Fake upstream ---

// fakeUpstream serves the order API endpoints the desk talks to and
// records what it was sent.
type fakeUpstream struct {
	mu          sync.Mutex
	orders      []model.Order
	authHeaders []string
	created     []json.RawMessage
	failStates  bool
}

func (f *fakeUpstream) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authHeaders) == 0 {
		return ""
	}
	return f.authHeaders[len(f.authHeaders)-1]
}

func (f *fakeUpstream) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
			f.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := min(offset+limit, len(f.orders))
		page := []model.Order{}
		if offset < end {
			page = f.orders[offset:end]
		}
		json.NewEncoder(w).Encode(page)
	})
	r.Get("/orders/{id}/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":null,"items":[{"item_id":1,"product_id":7,"product_name":"Router","quantity":2}],"remarks":null}`))
	})
	r.Put("/orders/{id}/update-delivery", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"updated"}`))
	})
	r.Put("/orders/{id}/toggle-payment", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"payment_status":"paid"}`))
	})
	r.Get("/orders/{id}/serial_numbers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"item_id":1,"product_id":7,"product_name":"Router","quantity":2,"serials":["SN-1"]}]`))
	})
	r.Post("/orders/{id}/serial_numbers/save", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"serial_status":"complete"}`))
	})
	r.Post("/orders/create", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		w.Write([]byte(`{"order_id":"ORD-NEW"}`))
	})

	r.Get("/customers/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":5,"type":"online","name":"Asha","mobile":"9000000000"}`))
	})
	r.Get("/dropdowns/customers/{type}/{id}/addresses", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"address_id":11,"name":"Asha","mobile":"9000000000","pincode":"560001","address_line":"1 MG Road","city":"Bengaluru","state_id":29}]`))
	})
	r.Get("/products/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":7,"name":"Router","gst_percent":"18","mrp":"1000","stock":4}`))
	})
	r.Get("/dropdowns/products/get_price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"900"}`))
	})
	r.Get("/states/list", func(w http.ResponseWriter, r *http.Request) {
		if f.failStates {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"database offline"}`))
			return
		}
		w.Write([]byte(`[{"id":29,"name":"Karnataka"}]`))
	})
	return r
}

// --- Test server ---

type testDesk struct {
	srv      *httptest.Server
	upstream *fakeUpstream
	reg      *desk.Registry
}

func newTestDesk(t *testing.T, orders int) *testDesk {
	t.Helper()
	up := &fakeUpstream{}
	for i := 1; i <= orders; i++ {
		up.orders = append(up.orders, model.Order{
			OrderID:        "ORD-" + strconv.Itoa(i),
			PaymentStatus:  "pending",
			DeliveryStatus: "NOT_SHIPPED",
			SerialStatus:   "none",
		})
	}
	upSrv := httptest.NewServer(up.handler())
	t.Cleanup(upSrv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	reg := desk.NewRegistry(upstream.New(upSrv.URL), hub, nil, desk.Options{PageSize: 2, ReconcileDelay: time.Hour}, nil)
	t.Cleanup(reg.CloseAll)

	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	r := router.New(cfg, reg, hub, auth.NewVerifier(""), zap.NewNop().Sugar())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testDesk{srv: srv, upstream: up, reg: reg}
}

func testToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken("provider-secret", "admin@example.com", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (d *testDesk) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, d.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (d *testDesk) openSession(t *testing.T) string {
	t.Helper()
	resp := d.do(t, http.MethodPost, "/desk/sessions", testToken(t), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: got status %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var out map[string]string
	decode(t, resp, &out)
	return out["session_id"]
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out map[string]string
	decode(t, resp, &out)
	return out["error"]
}
