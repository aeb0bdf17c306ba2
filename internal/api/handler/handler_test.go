package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/grievance"
	"grievance/backend/internal/livefeed"
	"grievance/backend/internal/localization"
	"grievance/backend/internal/metrics"
	"grievance/backend/internal/models"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/storage"
	"grievance/backend/internal/triage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testAuthToken = "twilio-test-token"

type testEnv struct {
	router *gin.Engine
	h      *Handler
	store  *storage.Service
}

// memoryDeduper remembers replies by message id.
type memoryDeduper struct{ replies map[string]string }

func (d *memoryDeduper) Claim(_ context.Context, id string) (bool, string, error) {
	if r, ok := d.replies[id]; ok {
		return false, r, nil
	}
	d.replies[id] = ""
	return true, "", nil
}
func (d *memoryDeduper) Complete(_ context.Context, id, reply string) error {
	d.replies[id] = reply
	return nil
}
func (d *memoryDeduper) Release(_ context.Context, id string) error {
	delete(d.replies, id)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(context.Background(), db, zap.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := storage.NewStorageService(db)
	store.HashCost = bcrypt.MinCost

	loc, err := localization.NewLocalizer()
	require.NoError(t, err)

	hub := livefeed.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	// Без LLM: класифікація йде детермінованим резервним шляхом
	svc := grievance.NewService(grievance.Deps{
		Storage:   store,
		Triage:    triage.NewClient(nil, nil, time.Second),
		Notifier:  notify.NewDispatcher(notify.Options{Phones: store, Localize: loc}),
		Feed:      hub,
		Dedupe:    &memoryDeduper{replies: map[string]string{}},
		Localizer: loc,
	})

	h := NewHandler(store, svc, hub, NewAuth("test-secret", time.Hour), nil)
	h.Ping = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	h.Options = Options{TwilioAuthToken: testAuthToken, PublicBaseURL: "https://grievance.example.org"}

	return &testEnv{router: NewRouter(h, zap.NewNop()), h: h, store: store}
}

func (e *testEnv) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func jsonRequest(method, path string, payload any) *http.Request {
	data, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		fw.Write(image)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process_grievance", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// adminToken creates an admin in dept and returns a signed token for it.
func (e *testEnv) adminToken(t *testing.T, email, dept string) (string, uint) {
	t.Helper()
	admin := &models.Admin{Name: "Officer", Email: email, Department: dept}
	require.NoError(t, e.store.CreateAdmin(context.Background(), admin, "secret123"))
	token, err := e.h.Auth.Issue(KindAdmin, admin.ID, dept)
	require.NoError(t, err)
	return token, admin.ID
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (e *testEnv) submit(t *testing.T, text string) string {
	t.Helper()
	w, body := e.do(formRequest(t, map[string]string{"grievance_text": text, "city": "Pune"}, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return body["grievance_id"].(string)
}

func TestProcessGrievance(t *testing.T) {
	e := newTestEnv(t)

	t.Run("missing text", func(t *testing.T) {
		w, body := e.do(formRequest(t, map[string]string{"city": "Pune"}, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "error", body["status"])
		all, err := e.store.ListAllGrievances(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("success with degraded triage", func(t *testing.T) {
		w, body := e.do(formRequest(t, map[string]string{
			"grievance_text": "Huge pothole on the main road, accident risk",
			"phone":          "9876543210",
			"city":           "Pune",
			"area":           "Kothrud",
		}, nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		for _, key := range []string{"status", "grievance_id", "structured", "department", "priority",
			"image_analysis", "whatsapp_sent", "whatsapp_error", "phone_number"} {
			assert.Contains(t, body, key)
		}
		assert.Equal(t, "success", body["status"])
		assert.True(t, models.IsDepartment(body["department"].(string)))
		assert.True(t, models.IsPriority(body["priority"].(string)))
		assert.Equal(t, triage.StructureFailed, body["structured"])
		assert.Nil(t, body["image_analysis"])
		assert.Equal(t, false, body["whatsapp_sent"])
		assert.Equal(t, "WhatsApp notifications are not configured", body["whatsapp_error"])
		assert.Equal(t, "9876543210", body["phone_number"])
	})
}

func TestUpdateStatusEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.submit(t, "Streetlight not working near the park")
	token, adminID := e.adminToken(t, "roads@example.com", models.DeptRoads)

	tests := []struct {
		name     string
		id       string
		payload  map[string]any
		wantCode int
	}{
		{"invalid status", id, map[string]any{"status": "Finished"}, http.StatusBadRequest},
		{"unknown grievance", "GRV-00000000-00000000", map[string]any{"status": "Resolved"}, http.StatusNotFound},
		{"foreign admin_id", id, map[string]any{"status": "Resolved", "admin_id": adminID + 1}, http.StatusForbidden},
		{"valid", id, map[string]any{"status": "Under Review", "note": "Inspector assigned", "admin_id": adminID}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := e.do(withToken(jsonRequest(http.MethodPut, "/api/grievances/"+tt.id+"/status", tt.payload), token))
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "Pending → Under Review", body["message"])
				assert.Equal(t, "Pending", body["old_status"])
				assert.Equal(t, "Under Review", body["new_status"])
				assert.Contains(t, body, "whatsapp_sent")
			}
		})
	}

	w, body := e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/"+id+"/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 2, "rejected requests must not append history")
	latest := history[0].(map[string]any)
	assert.Equal(t, "Under Review", latest["new_status"])
	assert.Equal(t, "Pending", latest["old_status"])
	assert.Equal(t, float64(adminID), latest["actor_id"])
	assert.Equal(t, "Officer", latest["admin_name"])
}

func TestStatusChanges_RequireAdminToken(t *testing.T) {
	e := newTestEnv(t)
	id := e.submit(t, "Streetlight not working near the park")
	citizenToken, err := e.h.Auth.Issue(KindUser, 1, "")
	require.NoError(t, err)

	requests := map[string]func() *http.Request{
		"status": func() *http.Request {
			return jsonRequest(http.MethodPut, "/api/grievances/"+id+"/status", map[string]any{"status": "Closed", "admin_id": 1})
		},
		"close": func() *http.Request {
			return jsonRequest(http.MethodPost, "/api/grievances/"+id+"/close", map[string]any{"note": "Fixed", "admin_id": 1})
		},
	}
	for name, build := range requests {
		t.Run(name+" without token", func(t *testing.T) {
			w, body := e.do(build())
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "error", body["status"])
		})
		t.Run(name+" with citizen token", func(t *testing.T) {
			w, body := e.do(withToken(build(), citizenToken))
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "error", body["status"])
		})
	}

	g, err := e.store.GetGrievanceByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, g.Status)
	history, err := e.store.GetStatusHistory(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGrievanceReads(t *testing.T) {
	e := newTestEnv(t)
	id := e.submit(t, "No water supply since two days, tap dry")

	w, body := e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	g := body["grievance"].(map[string]any)
	assert.Equal(t, id, g["grievance_id"])

	// Ідемпотентність читання
	w2 := httptest.NewRecorder()
	e.router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/grievances/"+id, nil))
	assert.JSONEq(t, w.Body.String(), w2.Body.String())

	w, _ = e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/GRV-MISSING", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/all", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["grievances"], 1)

	dept := g["department"].(string)
	w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/department/"+url.PathEscape(dept), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["grievances"], 1)

	other := models.DeptEducation
	if dept == other {
		other = models.DeptElectricity
	}
	w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/department/"+url.PathEscape(other), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["grievances"])

	w, _ = e.do(httptest.NewRequest(http.MethodGet, "/api/grievances/user/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/departments", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["departments"], len(models.DepartmentCatalog))

	w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/status-stages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["stages"], len(models.StatusStages))
}

func TestCloseEndpoint(t *testing.T) {
	e := newTestEnv(t)
	id := e.submit(t, "Garbage dumped near the bus stop")
	token, _ := e.adminToken(t, "water@example.com", models.DeptWater)

	w, body := e.do(withToken(jsonRequest(http.MethodPost, "/api/grievances/"+id+"/close", map[string]any{"note": "We will look into it"}), token))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, body["approved"])
	assert.NotEmpty(t, body["reason"])
	assert.Equal(t, "Pending", body["new_status"])

	w, _ = e.do(withToken(jsonRequest(http.MethodPost, "/api/grievances/"+id+"/close", map[string]any{"note": ""}), token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	signup := map[string]any{"name": "Asha", "email": "asha@example.com", "phone": "9876543210", "password": "secret123"}
	w, body := e.do(jsonRequest(http.MethodPost, "/api/auth/signup", signup))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]any)
	assert.NotContains(t, user, "password_hash")

	w, _ = e.do(jsonRequest(http.MethodPost, "/api/auth/signup", signup))
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(jsonRequest(http.MethodPost, "/api/auth/signup", map[string]any{"name": "B", "email": "b@example.com", "password": "123"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": "ASHA@example.com", "password": "secret123"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user", body["type"])
	userToken := body["token"].(string)

	claims, err := e.h.Auth.Parse(userToken)
	require.NoError(t, err)
	assert.Equal(t, KindUser, claims.Kind)

	w, body = e.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": "asha@example.com", "password": "wrong"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", body["status"])

	admin := map[string]any{"name": "Officer", "email": "roads@example.com", "password": "secret123", "department": models.DeptRoads}
	w, body = e.do(jsonRequest(http.MethodPost, "/api/auth/admin/signup", admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	adminID := uint(body["admin"].(map[string]any)["id"].(float64))

	w, _ = e.do(jsonRequest(http.MethodPost, "/api/auth/admin/signup", map[string]any{
		"name": "X", "email": "x@example.com", "password": "secret123", "department": "Space Department",
	}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(jsonRequest(http.MethodPost, "/api/auth/login", map[string]any{"email": "roads@example.com", "password": "secret123", "type": "admin"}))
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := body["token"].(string)
	claims, err = e.h.Auth.Parse(adminToken)
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, claims.Kind)
	assert.Equal(t, models.DeptRoads, claims.Department)

	t.Run("admin profile and dashboard", func(t *testing.T) {
		path := "/api/admin/profile/" + itoa(adminID)
		w, body := e.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, models.DeptRoads, body["department"].(map[string]any)["name"])

		w, body = e.do(httptest.NewRequest(http.MethodGet, "/api/dashboard/stats/"+itoa(adminID), nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		stats := body["stats"].(map[string]any)
		assert.Equal(t, models.DeptRoads, stats["department"])
		assert.Len(t, stats["trendData"], 7)

		w, _ = e.do(httptest.NewRequest(http.MethodGet, "/api/dashboard/stats/999", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("live feed auth", func(t *testing.T) {
		w, _ := e.do(httptest.NewRequest(http.MethodGet, "/ws/feed", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w, _ = e.do(httptest.NewRequest(http.MethodGet, "/ws/feed?token="+userToken, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, _ = e.do(httptest.NewRequest(http.MethodGet, "/ws/feed?token=garbage", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		srv := httptest.NewServer(e.router)
		defer srv.Close()
		conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/feed?token="+adminToken, nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	})
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func twilioSignature(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(twilioSignatureHeader, signature)
	}
	return req
}

func TestWhatsAppWebhook(t *testing.T) {
	e := newTestEnv(t)

	w, body := e.do(httptest.NewRequest(http.MethodGet, "/webhook/whatsapp", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])

	form := url.Values{
		"MessageSid": {"SM0001"},
		"From":       {"whatsapp:+919876543210"},
		"Body":       {"Drainage blocked and sewage overflowing on our street"},
		"NumMedia":   {"0"},
	}

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, webhookRequest(form, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "xml")
	first := w.Body.String()
	assert.Contains(t, first, "<Response>")
	assert.Contains(t, first, "GRV-")

	// Повтор того ж MessageSid
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, webhookRequest(form, ""))
	assert.Equal(t, first, w.Body.String())

	all, err := e.store.ListAllGrievances(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.SourceWhatsApp, all[0].Source)
	assert.Equal(t, "+919876543210", all[0].Phone)
	assert.Equal(t, config.PlaceholderLocationTag, all[0].SpecificLocation)
}

func TestWhatsAppWebhook_Signature(t *testing.T) {
	e := newTestEnv(t)
	e.h.Options.ValidateSignature = true

	form := url.Values{
		"MessageSid": {"SM0002"},
		"From":       {"whatsapp:+919876543210"},
		"Body":       {"Power cut for 10 hours"},
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, webhookRequest(form, "bm90LWEtc2lnbmF0dXJl"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	sig := twilioSignature(testAuthToken, "https://grievance.example.org/webhook/whatsapp", form)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, webhookRequest(form, sig))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOpsEndpoints(t *testing.T) {
	e := newTestEnv(t)

	w, body := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["whatsapp_enabled"])

	w, _ = e.do(httptest.NewRequest(http.MethodGet, "/test_twilio", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, body = e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	e.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	e := newTestEnv(t)
	e.router.GET("/boom", func(c *gin.Context) { panic("boom") })
	metrics.Register()
	panics := metrics.RequestCounter.WithLabelValues(http.MethodGet, "/boom", "500")
	before := testutil.ToFloat64(panics)

	w, body := e.do(httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.Equal(t, 1.0, testutil.ToFloat64(panics)-before, "panicking requests are still counted")
}
