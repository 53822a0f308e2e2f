package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/pos"
	"ichiboo/backend/internal/store/kv"
	"ichiboo/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	repo, err := memory.New(context.Background(), kv.NewVolatile())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc := pos.New(repo)
	auth := NewAuthManager("test-secret-not-for-production", time.Hour, svc)
	return New(svc, auth, "http://127.0.0.1:3000")
}

func doJSON(t *testing.T, api *API, method string, path string, token string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func loginWithPIN(t *testing.T, api *API, pin string) string {
	t.Helper()
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{PIN: pin}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", res.Code, res.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return loginWithPIN(t, api, "0000")
}

func createProduct(t *testing.T, api *API, token string, name string, price float64, qty int) domain.Product {
	t.Helper()
	res := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductUpsertRequest{
		Name: name, Category: "Takoyaki", Price: price, CostPrice: price / 2, Qty: qty,
	}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("create product returned %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return resp.Product
}

func TestEndpointsRequireBearer(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/v1/products", "/api/v1/cart", "/api/v1/sales", "/api/v1/config"} {
		res := doJSON(t, api, http.MethodGet, path, "", nil, nil)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token returned %d, want 401", path, res.Code)
		}
	}
}

func TestLoginWithWrongPIN(t *testing.T) {
	api := newTestAPI(t)
	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{PIN: "9999"}, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("wrong pin login returned %d, want 401", res.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	product := createProduct(t, api, token, "Takoyaki 8pcs", 110, 10)

	res := doJSON(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.CartAddRequest{ProductID: product.ID, Qty: 3}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("add to cart returned %d: %s", res.Code, res.Body.String())
	}
	var cart domain.CartView
	if err := json.Unmarshal(res.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Qty != 3 {
		t.Fatalf("cart = %+v", cart)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{Payment: 500, PaymentMethod: "Cash"}, nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("checkout returned %d: %s", res.Code, res.Body.String())
	}
	var checkout struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if checkout.Sale.Change != 170 {
		t.Fatalf("change = %v, want 170", checkout.Sale.Change)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+checkout.Sale.ID+"/receipt", token, nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("receipt returned %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Takoyaki 8pcs") {
		t.Fatalf("receipt missing line item:\n%s", res.Body.String())
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("receipt content type = %q", ct)
	}
}

func TestInsufficientPaymentReturns422(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	product := createProduct(t, api, token, "Takoyaki 8pcs", 110, 10)

	res := doJSON(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.CartAddRequest{ProductID: product.ID, Qty: 2}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("add to cart returned %d", res.Code)
	}
	res = doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{Payment: 10}, nil)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("underpaid checkout returned %d, want 422", res.Code)
	}
}

func TestInsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	product := createProduct(t, api, token, "Okonomiyaki", 95, 2)

	res := doJSON(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.CartAddRequest{ProductID: product.ID, Qty: 5}, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("overdraw returned %d, want 409", res.Code)
	}
}

func TestVoidRequiresConfirmationToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	product := createProduct(t, api, token, "Takoyaki 8pcs", 110, 10)

	doJSON(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.CartAddRequest{ProductID: product.ID, Qty: 2}, nil)
	res := doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{Payment: 500}, nil)
	var checkout struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales/"+checkout.Sale.ID+"/void", token, nil, nil)
	if res.Code != http.StatusPreconditionRequired {
		t.Fatalf("void without token returned %d, want 428", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/confirmations", token, domain.ConfirmationRequest{
		Action: domain.ConfirmVoidSale, Subject: checkout.Sale.ID,
	}, nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("confirmation returned %d: %s", res.Code, res.Body.String())
	}
	var conf domain.ConfirmationResponse
	if err := json.Unmarshal(res.Body.Bytes(), &conf); err != nil {
		t.Fatalf("decode confirmation: %v", err)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/sales/"+checkout.Sale.ID+"/void", token, nil, map[string]string{confirmHeader: conf.Token})
	if res.Code != http.StatusOK {
		t.Fatalf("confirmed void returned %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+checkout.Sale.ID, token, nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("voided sale lookup returned %d, want 404", res.Code)
	}
}

func TestEmployeeRoutesForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	adminToken := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/employees", adminToken, domain.EmployeeCreateRequest{Name: "Mika", PIN: "4321"}, nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("create employee returned %d: %s", res.Code, res.Body.String())
	}

	cashierToken := loginWithPIN(t, api, "4321")
	res = doJSON(t, api, http.MethodGet, "/api/v1/employees", cashierToken, nil, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("cashier employee list returned %d, want 403", res.Code)
	}

	// Catalog mutation is gated in the service, not the route table.
	res = doJSON(t, api, http.MethodPost, "/api/v1/products", cashierToken, domain.ProductUpsertRequest{Name: "X", Price: 1}, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("cashier product upsert returned %d, want 403", res.Code)
	}
}

func TestDuplicatePinReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/employees", token, domain.EmployeeCreateRequest{Name: "Mika", PIN: "4321"}, nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("create employee returned %d", res.Code)
	}
	res = doJSON(t, api, http.MethodPost, "/api/v1/employees", token, domain.EmployeeCreateRequest{Name: "Rina", PIN: "4321"}, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate pin returned %d, want 409", res.Code)
	}
}

func TestBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductUpsertRequest{
		Name: "Iced Tea", Barcode: "4800005", Price: 35, CostPrice: 12, Qty: 10,
	}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("create returned %d", res.Code)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/4800005", token, nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("barcode lookup returned %d", res.Code)
	}
	res = doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/0000000", token, nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown barcode returned %d, want 404", res.Code)
	}
}

func TestReconciliationEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	product := createProduct(t, api, token, "Takoyaki 8pcs", 110, 10)

	doJSON(t, api, http.MethodPost, "/api/v1/cart/items", token, domain.CartAddRequest{ProductID: product.ID, Qty: 2}, nil)
	res := doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, domain.CheckoutRequest{Payment: 220, PaymentMethod: "Cash"}, nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("checkout returned %d", res.Code)
	}

	path := fmt.Sprintf("/api/v1/reports/reconciliation?range=today&starting_float=100&actual_cash=%v", 320.0)
	res = doJSON(t, api, http.MethodGet, path, token, nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reconciliation returned %d: %s", res.Code, res.Body.String())
	}
	var report domain.ReconciliationReport
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != domain.ReconBalanced {
		t.Fatalf("status = %s, want Balanced (report %+v)", report.Status, report)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/reconciliation?range=bogus", token, nil, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bogus range returned %d, want 400", res.Code)
	}
}

func TestReconciliationInlineExpenses(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	// No sales: expected cash is the float minus the supplied expense.
	res := doJSON(t, api, http.MethodGet, "/api/v1/reports/reconciliation?range=today&starting_float=100&actual_cash=50&expenses=50", token, nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reconciliation returned %d: %s", res.Code, res.Body.String())
	}
	var report domain.ReconciliationReport
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalExpenses != 50 {
		t.Fatalf("total expenses = %v, want 50", report.TotalExpenses)
	}
	if report.ExpectedCash != 50 || report.Status != domain.ReconBalanced {
		t.Fatalf("expected cash %v status %s, want 50 Balanced", report.ExpectedCash, report.Status)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/reconciliation?range=today&expenses=ice:30&expenses=charcoal:20", token, nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("reconciliation returned %d: %s", res.Code, res.Body.String())
	}
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalExpenses != 50 {
		t.Fatalf("labelled expenses total = %v, want 50", report.TotalExpenses)
	}

	res = doJSON(t, api, http.MethodGet, "/api/v1/reports/reconciliation?range=today&expenses=notanumber", token, nil, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad expenses value returned %d, want 400", res.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"x","qty":1,"extra":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("unknown field returned %d, want 400", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	res := doJSON(t, api, http.MethodDelete, "/api/v1/checkout", token, nil, nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE checkout returned %d, want 405", res.Code)
	}
}
