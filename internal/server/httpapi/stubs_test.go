package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/auth"
	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = "11111111-1111-1111-1111-111111111111"
	testAdminID = "22222222-2222-2222-2222-222222222222"
)

type stubUsers struct {
	register      func(services.RegisterInput) (*models.User, error)
	login         func(email, password string) (*services.TokenPair, error)
	refresh       func(token string) (*services.TokenPair, error)
	logout        func(token string) error
	profile       func(userID string) (*models.User, error)
	updateProfile func(userID string, in services.ProfileUpdate) (*models.User, error)
}

func (s *stubUsers) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	return s.register(in)
}

func (s *stubUsers) Login(_ context.Context, email, password string) (*services.TokenPair, error) {
	return s.login(email, password)
}

func (s *stubUsers) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	return s.refresh(token)
}

func (s *stubUsers) Logout(_ context.Context, token string) error {
	return s.logout(token)
}

func (s *stubUsers) Profile(_ context.Context, userID string) (*models.User, error) {
	return s.profile(userID)
}

func (s *stubUsers) UpdateProfile(_ context.Context, userID string, in services.ProfileUpdate) (*models.User, error) {
	return s.updateProfile(userID, in)
}

// Only testAdminID is an admin.
func (s *stubUsers) IsAdmin(_ context.Context, userID string) (bool, error) {
	return userID == testAdminID, nil
}

type stubCatalog struct {
	list   func(models.MaterialFilter, *session.Session) ([]*services.CatalogItem, error)
	get    func(id string) (*services.CatalogItem, error)
	create func(services.MaterialInput) (*models.Material, error)
	update func(id string, in services.MaterialInput) (*models.Material, error)
	delete func(id string) error
}

func (s *stubCatalog) List(_ context.Context, f models.MaterialFilter, viewer *session.Session) ([]*services.CatalogItem, error) {
	return s.list(f, viewer)
}

func (s *stubCatalog) Get(_ context.Context, id string, _ *session.Session) (*services.CatalogItem, error) {
	return s.get(id)
}

func (s *stubCatalog) Create(_ context.Context, in services.MaterialInput) (*models.Material, error) {
	return s.create(in)
}

func (s *stubCatalog) Update(_ context.Context, id string, in services.MaterialInput) (*models.Material, error) {
	return s.update(id, in)
}

func (s *stubCatalog) Delete(_ context.Context, id string) error {
	return s.delete(id)
}

type stubPurchases struct {
	history  func(*session.Session) ([]*models.PurchaseHistoryItem, error)
	download func(*session.Session, string) (string, error)
	checkout func(*session.Session, string) (string, error)
}

func (s *stubPurchases) History(_ context.Context, sess *session.Session) ([]*models.PurchaseHistoryItem, error) {
	return s.history(sess)
}

func (s *stubPurchases) Download(_ context.Context, sess *session.Session, id string) (string, error) {
	return s.download(sess, id)
}

func (s *stubPurchases) Checkout(_ context.Context, sess *session.Session, id string) (string, error) {
	return s.checkout(sess, id)
}

type stubReconciler struct {
	reconcile func(*session.Session, services.Confirmation) services.Result
	simulate  func(*session.Session, string) (*models.Purchase, error)
}

func (s *stubReconciler) Reconcile(_ context.Context, sess *session.Session, c services.Confirmation) services.Result {
	return s.reconcile(sess, c)
}

func (s *stubReconciler) Simulate(_ context.Context, sess *session.Session, id string) (*models.Purchase, error) {
	return s.simulate(sess, id)
}

type stubContent struct {
	section       func(string) (map[string]any, error)
	updateSection func(string, json.RawMessage) (map[string]any, error)
	home          func(*session.Session) (*services.HomePage, error)
	uploadImage   func(*services.Upload, string) (string, error)
	posts         func(search string, page int) (*services.PostPage, error)
	createPost    func(services.PostInput) (*models.Post, error)
	updatePost    func(string, services.PostInput) (*models.Post, error)
	deletePost    func(string) error
}

func (s *stubContent) Section(_ context.Context, seccion string) (map[string]any, error) {
	return s.section(seccion)
}

func (s *stubContent) UpdateSection(_ context.Context, seccion string, raw json.RawMessage) (map[string]any, error) {
	return s.updateSection(seccion, raw)
}

func (s *stubContent) Home(_ context.Context, viewer *session.Session) (*services.HomePage, error) {
	return s.home(viewer)
}

func (s *stubContent) UploadImage(_ context.Context, up *services.Upload, replaces string) (string, error) {
	return s.uploadImage(up, replaces)
}

func (s *stubContent) Posts(_ context.Context, search string, page int) (*services.PostPage, error) {
	return s.posts(search, page)
}

func (s *stubContent) CreatePost(_ context.Context, in services.PostInput) (*models.Post, error) {
	return s.createPost(in)
}

func (s *stubContent) UpdatePost(_ context.Context, id string, in services.PostInput) (*models.Post, error) {
	return s.updatePost(id, in)
}

func (s *stubContent) DeletePost(_ context.Context, id string) error {
	return s.deletePost(id)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SiteOrigin = "https://tienda.test"
	return cfg
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type testServer struct {
	cfg        *config.Config
	users      *stubUsers
	catalog    *stubCatalog
	purchases  *stubPurchases
	reconciler *stubReconciler
	content    *stubContent
	rdb        redis.UniversalClient
}

func newTestServer() *testServer {
	return &testServer{
		cfg:        testConfig(),
		users:      &stubUsers{},
		catalog:    &stubCatalog{},
		purchases:  &stubPurchases{},
		reconciler: &stubReconciler{},
		content:    &stubContent{},
	}
}

func (ts *testServer) router() http.Handler {
	h := NewHandler(Services{
		Users:      ts.users,
		Catalog:    ts.catalog,
		Purchases:  ts.purchases,
		Reconciler: ts.reconciler,
		Content:    ts.content,
	}, ts.cfg, discardLogger(), ts.rdb)
	return NewRouter(h)
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, userID+"@example.com", []byte(ts.cfg.SecretKey), time.Minute)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) authed(t *testing.T, req *http.Request, userID string) *http.Request {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+ts.token(t, userID))
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
