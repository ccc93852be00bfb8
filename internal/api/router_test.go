package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parking_control/internal/api/handler"
	"parking_control/internal/api/middleware"
	"parking_control/internal/domain"
	"parking_control/internal/repository/sqlite"
	"parking_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type testServer struct {
	router *gin.Engine
	auth   *service.AuthService
}

func newTestServer(t *testing.T, withAuth bool) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	wsManager := handler.NewWebSocketManager()
	go wsManager.Start(ctx)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC))
	deps := Deps{
		ParkingSpotService: service.NewParkingSpotService(sqlite.NewParkingSpotRepository(db), clock, wsManager),
		WebSocketManager:   wsManager,
		Metrics:            middleware.NewMetrics(),
	}
	if withAuth {
		deps.AuthService = service.NewAuthService(sqlite.NewUserRepository(db), "test-secret", time.Hour, clock)
	}

	r, err := SetupRouter(deps)
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	return testServer{router: r, auth: deps.AuthService}
}

func (s testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func spotBody(plate, number, apartment, block string) map[string]string {
	return map[string]string{
		"licensePlateCar":   plate,
		"parkingSpotNumber": number,
		"brandCar":          "Audi",
		"modelCar":          "Q3",
		"colorCar":          "Black",
		"responsibleName":   "Ana",
		"apartment":         apartment,
		"block":             block,
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestParkingSpotLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/parking-spot", spotBody("ABC1234", "10", "101", "A"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[domain.ParkingSpot](t, w)
	if created.ID == uuid.Nil {
		t.Fatal("created record has no id")
	}
	if !created.RegistrationDate.Equal(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)) {
		t.Errorf("registrationDate = %v", created.RegistrationDate)
	}

	w = s.do(t, http.MethodPost, "/parking-spot", spotBody("ABC1234", "10", "101", "A"), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["error"]; got != "Conflict: License plate car is already in use!" {
		t.Errorf("duplicate message = %q", got)
	}

	w = s.do(t, http.MethodGet, "/parking-spot/"+created.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = s.do(t, http.MethodPut, "/parking-spot/"+created.ID.String(), spotBody("XYZ9A87", "11", "102", "B"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	updated := decode[domain.ParkingSpot](t, w)
	if updated.ID != created.ID || !updated.RegistrationDate.Equal(created.RegistrationDate) {
		t.Errorf("update changed identity: %+v", updated)
	}
	if updated.LicensePlateCar != "XYZ9A87" {
		t.Errorf("licensePlateCar = %q", updated.LicensePlateCar)
	}

	w = s.do(t, http.MethodDelete, "/parking-spot/"+created.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["message"]; got != "Parking spot deleted successfully" {
		t.Errorf("delete message = %q", got)
	}

	w = s.do(t, http.MethodGet, "/parking-spot/"+created.ID.String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w)["error"]; got != "Parking spot not found." {
		t.Errorf("not found message = %q", got)
	}
}

func TestParkingSpotErrors(t *testing.T) {
	s := newTestServer(t, false)
	missing := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "bad id", method: http.MethodGet, path: "/parking-spot/not-a-uuid", want: http.StatusBadRequest},
		{name: "get missing", method: http.MethodGet, path: "/parking-spot/" + missing, want: http.StatusNotFound},
		{name: "update missing", method: http.MethodPut, path: "/parking-spot/" + missing, body: spotBody("ABC1234", "10", "101", "A"), want: http.StatusNotFound},
		{name: "delete missing", method: http.MethodDelete, path: "/parking-spot/" + missing, want: http.StatusNotFound},
		{name: "invalid plate", method: http.MethodPost, path: "/parking-spot", body: spotBody("abc", "10", "101", "A"), want: http.StatusBadRequest},
		{name: "bad sort", method: http.MethodGet, path: "/parking-spot?sort=password", want: http.StatusBadRequest},
		{name: "bad size", method: http.MethodGet, path: "/parking-spot?size=0", want: http.StatusBadRequest},
		{name: "page past int range", method: http.MethodGet, path: "/parking-spot?page=922337203685477581", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	// update of a missing id must not create anything
	w := s.do(t, http.MethodGet, "/parking-spot", nil, "")
	if page := decode[domain.Page[domain.ParkingSpot]](t, w); page.TotalElements != 0 {
		t.Errorf("totalElements = %d, want 0", page.TotalElements)
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	s := newTestServer(t, false)
	body := spotBody("ABC1234", "10", "101", "A")
	body["brandCar"] = " "
	delete(body, "block")

	w := s.do(t, http.MethodPost, "/parking-spot", body, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, w)
	if resp.Fields["brandCar"] != "notblank" || resp.Fields["block"] != "required" {
		t.Errorf("fields = %v", resp.Fields)
	}
}

func TestListParkingSpots(t *testing.T) {
	s := newTestServer(t, false)
	blocks := []string{"A", "B", "A"}
	plates := []string{"AAA1111", "BBB2222", "CCC3333"}
	for i, block := range blocks {
		w := s.do(t, http.MethodPost, "/parking-spot", spotBody(plates[i], string(rune('1'+i)), "10"+string(rune('1'+i)), block), "")
		if w.Code != http.StatusCreated {
			t.Fatalf("seed %d status = %d, body %s", i, w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodGet, "/parking-spot?sort=parkingSpotNumber,desc&size=2", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	page := decode[domain.Page[domain.ParkingSpot]](t, w)
	if page.TotalElements != 3 || page.TotalPages != 2 || page.Size != 2 || len(page.Content) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Content[0].ParkingSpotNumber != "3" || page.Content[1].ParkingSpotNumber != "2" {
		t.Errorf("order = %s,%s", page.Content[0].ParkingSpotNumber, page.Content[1].ParkingSpotNumber)
	}

	w = s.do(t, http.MethodGet, "/parking-spot?block=A", nil, "")
	if page := decode[domain.Page[domain.ParkingSpot]](t, w); page.TotalElements != 2 {
		t.Errorf("block filter totalElements = %d, want 2", page.TotalElements)
	}
}

func TestAuthProtectsParkingSpots(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	if err := s.auth.EnsureAdmin(ctx, "root", "toor123"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	if w := s.do(t, http.MethodGet, "/parking-spot", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/auth/register", map[string]string{"username": "porter", "password": "secret1"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
	registered := decode[domain.AuthResponseDTO](t, w)
	if registered.Token == "" || registered.Role != domain.RoleOperator || registered.Username != "porter" {
		t.Fatalf("register response = %+v", registered)
	}
	if w := s.do(t, http.MethodGet, "/parking-spot", nil, registered.Token); w.Code != http.StatusOK {
		t.Errorf("list with register token status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/auth/register", map[string]string{"username": "porter", "password": "other12"}, ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "porter", "password": "wrong12"}, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password login status = %d, want 401", w.Code)
	}

	login := func(username, password string) string {
		w := s.do(t, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, "")
		if w.Code != http.StatusOK {
			t.Fatalf("login %s status = %d", username, w.Code)
		}
		return decode[domain.AuthResponseDTO](t, w).Token
	}
	operator := login("porter", "secret1")
	admin := login("root", "toor123")

	if w := s.do(t, http.MethodGet, "/parking-spot", nil, operator); w.Code != http.StatusOK {
		t.Errorf("operator list status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/parking-spot", spotBody("ABC1234", "10", "101", "A"), operator); w.Code != http.StatusForbidden {
		t.Errorf("operator create status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/parking-spot", spotBody("ABC1234", "10", "101", "A"), admin); w.Code != http.StatusCreated {
		t.Errorf("admin create status = %d", w.Code)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	if err := s.auth.EnsureAdmin(ctx, "root", "toor123"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	if w := s.do(t, http.MethodGet, "/ws", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /ws status = %d, want 401", w.Code)
	}

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("anonymous dial succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous dial response = %v, err %v", resp, err)
	}

	w := s.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "toor123"}, "")
	token := decode[domain.AuthResponseDTO](t, w).Token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)
	if w := s.do(t, http.MethodGet, "/health", nil, ""); w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/metrics", nil, ""); w.Code != http.StatusOK {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, false)
	h := NewHTTPHandler(s.router)

	req := httptest.NewRequest(http.MethodOptions, "/parking-spot", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Max-Age = %q", got)
	}
}
