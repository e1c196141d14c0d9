package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/stocktaker/internal/db"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
)

const testJWTSecret = "test-secret"

type recordingExporter struct {
	takes    []*model.StockTake
	products map[int64]model.Product
}

func (e *recordingExporter) ExportStockTake(_ context.Context, take *model.StockTake, products map[int64]model.Product, _ string) error {
	e.takes = append(e.takes, take)
	e.products = products
	return nil
}

type testEnv struct {
	server   *httptest.Server
	store    *store.Store
	exporter *recordingExporter
	token    string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	st := store.New(db.NewTestDB(t), db.DriverSQLite)
	exporter := &recordingExporter{}
	server := httptest.NewServer(NewRouter(Deps{Store: st, Exporter: exporter, JWTSecret: testJWTSecret}))
	t.Cleanup(server.Close)

	createUser(t, st, "admin@example.com", model.RoleAdmin, true)
	env := &testEnv{server: server, store: st, exporter: exporter}
	env.token = env.login(t, "admin@example.com", "password")
	return env
}

func createUser(t *testing.T, st *store.Store, email, role string, approved bool) *model.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	u, err := st.CreateUser(context.Background(), model.User{
		Email: email, Name: email, PasswordHash: string(hash), Role: role, Approved: approved,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	var resp loginResponse
	status := e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login failed: %d", status)
	}
	if resp.Token == "" {
		t.Fatal("empty token from login")
	}
	return resp.Token
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createProduct(t *testing.T, name string) model.Product {
	t.Helper()
	var p model.Product
	status := e.do(t, "POST", "/api/products", e.token, map[string]any{
		"name": name, "product_category": "beef", "stock_category": "meat",
		"cost": "4.20", "product_value": "6.00", "sage_code": "S-" + name,
	}, &p)
	if status != http.StatusCreated {
		t.Fatalf("creating product: %d", status)
	}
	return p
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	status := env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	status = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "ADMIN@example.com ", "password": "password"}, nil)
	if status != http.StatusOK {
		t.Errorf("expected 200 for mixed-case email, got %d", status)
	}
}

func TestSignupRequiresApproval(t *testing.T) {
	env := setupTestServer(t)

	var user model.User
	status := env.do(t, "POST", "/api/auth/signup", "", map[string]string{
		"email": "new@example.com", "name": "New", "password": "longenough",
	}, &user)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if user.Approved || user.Role != model.RoleUser {
		t.Errorf("new user should be an unapproved user, got %+v", user)
	}

	status = env.do(t, "POST", "/api/auth/signup", "", map[string]string{
		"email": "new@example.com", "name": "Again", "password": "longenough",
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", status)
	}

	token := env.login(t, "new@example.com", "longenough")

	var me model.User
	if status := env.do(t, "GET", "/api/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: %d", status)
	}
	if me.Email != "new@example.com" {
		t.Errorf("me returned %q", me.Email)
	}

	if status := env.do(t, "GET", "/api/conversions/active", token, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 before approval, got %d", status)
	}

	if status := env.do(t, "PUT", "/api/users/"+user.ID+"/approve", env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("approve: %d", status)
	}

	if status := env.do(t, "GET", "/api/conversions/active", token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 after approval, got %d", status)
	}
}

func TestSignupValidation(t *testing.T) {
	env := setupTestServer(t)

	status := env.do(t, "POST", "/api/auth/signup", "", map[string]string{
		"email": "short@example.com", "name": "Short", "password": "short",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", status)
	}

	status = env.do(t, "POST", "/api/auth/signup", "", map[string]string{
		"email": "not-an-email", "name": "X", "password": "longenough",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad email, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	if status := env.do(t, "POST", "/api/auth/logout", env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status := env.do(t, "GET", "/api/auth/me", env.token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	if status := env.do(t, "GET", "/api/products", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", status)
	}
	if status := env.do(t, "GET", "/api/products", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", status)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	createUser(t, env.store, "user@example.com", model.RoleUser, true)
	userToken := env.login(t, "user@example.com", "password")

	status := env.do(t, "POST", "/api/products", userToken, map[string]string{
		"name": "Test", "product_category": "beef", "stock_category": "meat",
	}, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for user creating product, got %d", status)
	}

	if status := env.do(t, "GET", "/api/users", userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", status)
	}

	if status := env.do(t, "GET", "/api/products", userToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for user listing products, got %d", status)
	}
}

func TestDeletedUserLosesAccess(t *testing.T) {
	env := setupTestServer(t)
	u := createUser(t, env.store, "gone@example.com", model.RoleUser, true)
	token := env.login(t, "gone@example.com", "password")

	if status := env.do(t, "DELETE", "/api/users/"+u.ID, env.token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	if status := env.do(t, "GET", "/api/auth/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for deleted user, got %d", status)
	}
}

func TestProductsPagination(t *testing.T) {
	env := setupTestServer(t)
	for _, name := range []string{"Brisket", "Chuck", "Rump", "Sirloin"} {
		env.createProduct(t, name)
	}

	var page ProductPage
	if status := env.do(t, "GET", "/api/products?per_page=3&page=2", env.token, nil, &page); status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if page.Total != 4 || len(page.Products) != 1 || page.Products[0].Name != "Sirloin" {
		t.Errorf("unexpected page: %+v", page)
	}

	if status := env.do(t, "GET", "/api/products?q=RUM", env.token, nil, &page); status != http.StatusOK {
		t.Fatalf("search: %d", status)
	}
	if len(page.Products) != 1 || page.Products[0].Name != "Rump" {
		t.Errorf("unexpected search result: %+v", page.Products)
	}

	if status := env.do(t, "GET", "/api/products?page=x", env.token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad page, got %d", status)
	}
}

func TestConversionFlow(t *testing.T) {
	env := setupTestServer(t)
	carcass := env.createProduct(t, "Carcass")
	steak := env.createProduct(t, "Steak")

	start := map[string]any{"id": "6f1c2a8e-8d9b-4c55-9a57-0a4f1b2c3d4e", "product_id": carcass.ID, "quantity": "12.5"}

	var c model.Conversion
	if status := env.do(t, "POST", "/api/conversions", env.token, start, &c); status != http.StatusCreated {
		t.Fatalf("start: %d", status)
	}
	if c.Status != model.ConversionInProgress {
		t.Errorf("expected in_progress, got %q", c.Status)
	}

	// A retried start with the same id does not create a second conversion.
	if status := env.do(t, "POST", "/api/conversions", env.token, start, nil); status != http.StatusCreated {
		t.Fatalf("retry: %d", status)
	}
	changed := map[string]any{"id": start["id"], "product_id": carcass.ID, "quantity": "13"}
	if status := env.do(t, "POST", "/api/conversions", env.token, changed, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for a retry with another quantity, got %d", status)
	}

	var active []model.ActiveConversion
	env.do(t, "GET", "/api/conversions/active", env.token, nil, &active)
	if len(active) != 1 || active[0].Product.Name != "Carcass" {
		t.Fatalf("expected one active conversion of Carcass, got %+v", active)
	}

	outputs := map[string]any{"outputs": []map[string]any{
		{"product_id": steak.ID, "quantity": "10", "storage_type": model.StorageFridge},
		{"product_id": model.WasteProductID, "quantity": "2.5"},
	}}
	if status := env.do(t, "POST", "/api/conversions/"+c.ID+"/complete", env.token, outputs, &c); status != http.StatusOK {
		t.Fatalf("complete: %d", status)
	}
	if c.Status != model.ConversionCompleted || c.CompletedAt == nil {
		t.Errorf("expected completed conversion, got %+v", c)
	}

	env.do(t, "GET", "/api/conversions/active", env.token, nil, &active)
	if len(active) != 0 {
		t.Errorf("expected no active conversions, got %d", len(active))
	}

	var detail model.ConversionDetail
	env.do(t, "GET", "/api/conversions/"+c.ID, env.token, nil, &detail)
	if len(detail.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(detail.Items))
	}
	for _, item := range detail.Items {
		if item.ProductID == model.WasteProductID && item.StorageType != model.StorageWaste {
			t.Errorf("waste stored as %q", item.StorageType)
		}
	}

	if status := env.do(t, "POST", "/api/conversions/"+c.ID+"/complete", env.token, outputs, nil); status != http.StatusOK {
		t.Errorf("expected repeated completion to succeed, got %d", status)
	}
	reweighed := map[string]any{"outputs": []map[string]any{
		{"product_id": steak.ID, "quantity": "9", "storage_type": model.StorageFridge},
		{"product_id": model.WasteProductID, "quantity": "2.5"},
	}}
	if status := env.do(t, "POST", "/api/conversions/"+c.ID+"/complete", env.token, reweighed, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for a repeat with other quantities, got %d", status)
	}

	different := map[string]any{"outputs": []map[string]any{
		{"product_id": steak.ID, "quantity": "12.5", "storage_type": model.StorageFreezer},
	}}
	if status := env.do(t, "POST", "/api/conversions/"+c.ID+"/complete", env.token, different, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for second completion, got %d", status)
	}
}

func TestConversionErrors(t *testing.T) {
	env := setupTestServer(t)
	carcass := env.createProduct(t, "Carcass")

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"zero quantity", map[string]any{"product_id": carcass.ID, "quantity": "0"}, http.StatusBadRequest},
		{"unknown product", map[string]any{"product_id": 9999, "quantity": "1"}, http.StatusBadRequest},
		{"waste input", map[string]any{"product_id": model.WasteProductID, "quantity": "1"}, http.StatusBadRequest},
		{"bad id", map[string]any{"id": "nope", "product_id": carcass.ID, "quantity": "1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if status := env.do(t, "POST", "/api/conversions", env.token, tc.body, nil); status != tc.want {
				t.Errorf("expected %d, got %d", tc.want, status)
			}
		})
	}

	outputs := map[string]any{"outputs": []map[string]any{
		{"product_id": carcass.ID, "quantity": "1", "storage_type": model.StorageRounds},
	}}
	status := env.do(t, "POST", "/api/conversions/6f1c2a8e-8d9b-4c55-9a57-0a4f1b2c3d4e/complete", env.token, outputs, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown conversion, got %d", status)
	}

	var c model.Conversion
	env.do(t, "POST", "/api/conversions", env.token, map[string]any{"product_id": carcass.ID, "quantity": "1"}, &c)
	empty := map[string]any{"outputs": []map[string]any{}}
	if status := env.do(t, "POST", "/api/conversions/"+c.ID+"/complete", env.token, empty, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for no outputs, got %d", status)
	}

	if status := env.do(t, "DELETE", "/api/conversions/"+c.ID, env.token, nil, nil); status != http.StatusOK {
		t.Errorf("cancel: %d", status)
	}
	if status := env.do(t, "DELETE", "/api/conversions/"+c.ID, env.token, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 cancelling twice, got %d", status)
	}
}

func TestStockTakeRecordsAndExports(t *testing.T) {
	env := setupTestServer(t)
	brisket := env.createProduct(t, "Brisket")

	body := map[string]any{
		"date":             "2026-03-14",
		"product_category": "beef",
		"take":             map[string]string{jsonID(brisket.ID): "7.5"},
	}
	var take model.StockTake
	if status := env.do(t, "POST", "/api/stocktakes", env.token, body, &take); status != http.StatusCreated {
		t.Fatalf("stock take: %d", status)
	}

	var p model.Product
	env.do(t, "GET", "/api/products/"+jsonID(brisket.ID), env.token, nil, &p)
	if p.StockCount.String() != "7.5" {
		t.Errorf("expected stock count 7.5, got %s", p.StockCount)
	}

	if len(env.exporter.takes) != 1 || env.exporter.products[brisket.ID].Name != "Brisket" {
		t.Errorf("stock take not exported: %+v", env.exporter)
	}

	var takes []model.StockTake
	env.do(t, "GET", "/api/stocktakes?category=beef", env.token, nil, &takes)
	if len(takes) != 1 {
		t.Errorf("expected 1 stock take, got %d", len(takes))
	}

	body["take"] = map[string]string{jsonID(brisket.ID): "-1"}
	if status := env.do(t, "POST", "/api/stocktakes", env.token, body, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for negative count, got %d", status)
	}
}

func TestDeliveriesFlow(t *testing.T) {
	env := setupTestServer(t)
	brisket := env.createProduct(t, "Brisket")

	var next map[string]int
	env.do(t, "GET", "/api/deliveries/next-batch-code", env.token, nil, &next)
	if next["batch_code"] != 1 {
		t.Errorf("expected first batch code 1, got %d", next["batch_code"])
	}

	body := map[string]any{
		"delivery_date":       "2026-03-14",
		"product":             brisket.ID,
		"quantity":            "20",
		"supplier":            "Farm Co",
		"van_temperature":     "3.5",
		"product_temperature": "4",
		"driver_name":         "Sam",
		"license_plate":       "ab12 cde",
		"origin":              "UK",
		"kill_date":           "2026-03-10",
	}
	var d model.Delivery
	if status := env.do(t, "POST", "/api/deliveries", env.token, body, &d); status != http.StatusCreated {
		t.Fatalf("delivery: %d", status)
	}
	if d.BatchCode != 1 || d.LicensePlate != "AB12 CDE" || d.ProductName != "Brisket" {
		t.Errorf("unexpected delivery: %+v", d)
	}

	env.do(t, "GET", "/api/deliveries/next-batch-code", env.token, nil, &next)
	if next["batch_code"] != 2 {
		t.Errorf("expected next batch code 2, got %d", next["batch_code"])
	}

	delete(body, "supplier")
	if status := env.do(t, "POST", "/api/deliveries", env.token, body, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 without supplier, got %d", status)
	}

	body["supplier"] = "Farm Co"
	body["product"] = 9999
	if status := env.do(t, "POST", "/api/deliveries", env.token, body, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown product, got %d", status)
	}
}

func TestDeliveriesSearchAndPaging(t *testing.T) {
	env := setupTestServer(t)
	brisket := env.createProduct(t, "Brisket")
	rump := env.createProduct(t, "Rump")

	record := func(product int64, supplier, date string) {
		t.Helper()
		body := map[string]any{
			"delivery_date":       date,
			"product":             product,
			"quantity":            "20",
			"supplier":            supplier,
			"van_temperature":     "3.5",
			"product_temperature": "4",
			"driver_name":         "Sam",
			"license_plate":       "ab12 cde",
			"origin":              "UK",
		}
		if status := env.do(t, "POST", "/api/deliveries", env.token, body, nil); status != http.StatusCreated {
			t.Fatalf("delivery: %d", status)
		}
	}
	for i := 1; i <= 12; i++ {
		record(brisket.ID, "Farm Co", fmt.Sprintf("2026-03-%02d", i))
	}
	record(rump.ID, "Hill Farm", "2026-03-20")

	var page DeliveryPage
	if status := env.do(t, "GET", "/api/deliveries?page=1", env.token, nil, &page); status != http.StatusOK {
		t.Fatalf("list: %d", status)
	}
	if page.Total != 13 || page.PerPage != 10 || len(page.Deliveries) != 10 {
		t.Errorf("unexpected first page: total %d, per page %d, %d rows", page.Total, page.PerPage, len(page.Deliveries))
	}
	if page.Deliveries[0].ProductName != "Rump" {
		t.Errorf("expected newest delivery first, got %q", page.Deliveries[0].ProductName)
	}

	env.do(t, "GET", "/api/deliveries?page=2", env.token, nil, &page)
	if page.Page != 2 || len(page.Deliveries) != 3 {
		t.Errorf("unexpected second page: page %d, %d rows", page.Page, len(page.Deliveries))
	}

	env.do(t, "GET", "/api/deliveries?q=rump", env.token, nil, &page)
	if page.Total != 1 || len(page.Deliveries) != 1 || page.Deliveries[0].Supplier != "Hill Farm" {
		t.Errorf("unexpected product search: %+v", page)
	}

	env.do(t, "GET", "/api/deliveries?q=FARM&page=1&per_page=5", env.token, nil, &page)
	if page.Total != 13 || len(page.Deliveries) != 5 {
		t.Errorf("unexpected supplier search: total %d, %d rows", page.Total, len(page.Deliveries))
	}

	env.do(t, "GET", "/api/deliveries?q=13", env.token, nil, &page)
	if len(page.Deliveries) != 1 || page.Deliveries[0].BatchCode != 13 {
		t.Errorf("unexpected batch code search: %+v", page.Deliveries)
	}

	if status := env.do(t, "GET", "/api/deliveries?page=x", env.token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad page, got %d", status)
	}
}

func TestProductImageUpload(t *testing.T) {
	env := setupTestServer(t)
	p := env.createProduct(t, "Brisket")

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "photo.png")
	fw.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", env.server.URL+"/api/products/"+jsonID(p.ID)+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest("GET", env.server.URL+"/api/products/"+jsonID(p.ID)+"/image", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
