package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/content"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/materials"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/posts"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/purchases"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/refreshtokens"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/users"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func discardLogger() logging.Logger {
	return logging.New("json", "error", "test", io.Discard)
}

// --- repositories ---

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	seq    int
	getErr error
}

func newFakeUsers(us ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	f.seq++
	c := *u
	c.ID = fmt.Sprintf("u-%d", f.seq)
	f.byID[c.ID] = &c
	return &c, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id, email, telefono, pais string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Email, u.Telefono, u.Pais = email, telefono, pais
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetRole(_ context.Context, email, rol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			u.Rol = rol
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeRefresh struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken
	createErr error
	deleteErr error
}

func newFakeRefresh() *fakeRefresh {
	return &fakeRefresh{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefresh) Create(_ context.Context, userID, hash string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[hash] = &models.RefreshToken{UserID: userID, TokenHash: hash, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefresh) Find(_ context.Context, hash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefresh) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tokens, hash)
	return nil
}

func (f *fakeRefresh) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, t := range f.tokens {
		if t.Expires.Before(now) {
			delete(f.tokens, h)
			n++
		}
	}
	return n, nil
}

type fakeMaterials struct {
	mu     sync.Mutex
	items  []*models.Material
	seq    int
	getErr error
	clock  time.Time
}

func newFakeMaterials(ms ...*models.Material) *fakeMaterials {
	return &fakeMaterials{items: ms, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeMaterials) Create(_ context.Context, m *models.Material) (*models.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.clock = f.clock.Add(time.Hour)
	c := *m
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = f.clock, f.clock
	f.items = append(f.items, &c)
	out := c
	return &out, nil
}

func (f *fakeMaterials) Update(_ context.Context, m *models.Material) (*models.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, x := range f.items {
		if x.ID == m.ID {
			c := *m
			c.CreatedAt = x.CreatedAt
			f.items[i] = &c
			out := c
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMaterials) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, x := range f.items {
		if x.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeMaterials) GetByID(_ context.Context, id string) (*models.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, x := range f.items {
		if x.ID == id {
			c := *x
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMaterials) List(_ context.Context, filter models.MaterialFilter) ([]*models.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Material
	for _, x := range f.items {
		if filter.Query != "" && !strings.Contains(strings.ToLower(x.Nombre), strings.ToLower(filter.Query)) {
			continue
		}
		if filter.Edad != "" && x.Edad != filter.Edad {
			continue
		}
		c := *x
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakePurchases struct {
	mu        sync.Mutex
	byPayment map[string]*models.Purchase
	order     []string
	seq       int
	inserts   int
	findErr   error
	createErr error
	// beforeCreate runs outside the lock, before the uniqueness check.
	beforeCreate func()
}

func newFakePurchases() *fakePurchases {
	return &fakePurchases{byPayment: map[string]*models.Purchase{}}
}

func (f *fakePurchases) Create(_ context.Context, p *models.Purchase) (*models.Purchase, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byPayment[p.PaymentID]; ok {
		return nil, common.ErrAlreadyExists
	}
	f.seq++
	f.inserts++
	c := *p
	c.ID = fmt.Sprintf("c-%d", f.seq)
	f.byPayment[p.PaymentID] = &c
	f.order = append(f.order, p.PaymentID)
	out := c
	return &out, nil
}

func (f *fakePurchases) FindByPaymentID(_ context.Context, paymentID string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	p, ok := f.byPayment[paymentID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePurchases) ListByUser(_ context.Context, userID string) ([]*models.PurchaseHistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PurchaseHistoryItem
	for i := len(f.order) - 1; i >= 0; i-- {
		p := f.byPayment[f.order[i]]
		if p.UserID == userID {
			out = append(out, &models.PurchaseHistoryItem{Purchase: *p, MaterialAvailable: true})
		}
	}
	return out, nil
}

func (f *fakePurchases) HasPurchased(_ context.Context, userID, materialID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byPayment {
		if p.UserID == userID && p.MaterialID == materialID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePurchases) PurchasedMaterialIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.byPayment {
		if p.UserID == userID {
			out = append(out, p.MaterialID)
		}
	}
	return out, nil
}

func (f *fakePurchases) SalesCount(context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, p := range f.byPayment {
		out[p.MaterialID]++
	}
	return out, nil
}

func (f *fakePurchases) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

type fakePosts struct {
	items []*models.Post
	seq   int
}

func (f *fakePosts) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	f.seq++
	c := *p
	c.ID = uuid.NewString()
	c.CreatedAt = time.Date(2025, 1, 1, f.seq, 0, 0, 0, time.UTC)
	f.items = append(f.items, &c)
	out := c
	return &out, nil
}

func (f *fakePosts) Update(_ context.Context, p *models.Post) (*models.Post, error) {
	for i, x := range f.items {
		if x.ID == p.ID {
			c := *p
			c.CreatedAt = x.CreatedAt
			f.items[i] = &c
			out := c
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePosts) Delete(_ context.Context, id string) error {
	for i, x := range f.items {
		if x.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakePosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	for _, x := range f.items {
		if x.ID == id {
			c := *x
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePosts) matching(search string) []*models.Post {
	var out []*models.Post
	for i := len(f.items) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(f.items[i].Titulo), strings.ToLower(search)) {
			out = append(out, f.items[i])
		}
	}
	return out
}

func (f *fakePosts) List(_ context.Context, search string, limit, offset int) ([]*models.Post, error) {
	all := f.matching(search)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (f *fakePosts) Count(_ context.Context, search string) (int, error) {
	return len(f.matching(search)), nil
}

type fakeContent struct {
	blocks map[string]json.RawMessage
	err    error
}

func (f *fakeContent) Get(_ context.Context, seccion string) (*models.ContentBlock, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.blocks[seccion]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ContentBlock{Seccion: seccion, Valores: v}, nil
}

func (f *fakeContent) Upsert(_ context.Context, seccion string, valores json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	if f.blocks == nil {
		f.blocks = map[string]json.RawMessage{}
	}
	f.blocks[seccion] = valores
	return nil
}

type fakeRepoManager struct {
	users     *fakeUsers
	refresh   *fakeRefresh
	materials *fakeMaterials
	purchases *fakePurchases
	posts     *fakePosts
	content   *fakeContent
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:     newFakeUsers(),
		refresh:   newFakeRefresh(),
		materials: newFakeMaterials(),
		purchases: newFakePurchases(),
		posts:     &fakePosts{},
		content:   &fakeContent{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.refresh }
func (m *fakeRepoManager) Materials(dbx.DBTX) materials.Repository         { return m.materials }
func (m *fakeRepoManager) Purchases(dbx.DBTX) purchases.Repository         { return m.purchases }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository                 { return m.posts }
func (m *fakeRepoManager) Content(dbx.DBTX) content.Repository             { return m.content }

// --- collaborators ---

type fakeStore struct {
	mu             sync.Mutex
	private        map[string][]byte
	public         map[string][]byte
	removedPrivate []string
	removedPublic  []string
	uploadErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{private: map[string][]byte{}, public: map[string][]byte{}}
}

func (s *fakeStore) UploadPrivate(_ context.Context, name, _ string, body io.Reader, _ int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	b, _ := io.ReadAll(body)
	key := fmt.Sprintf("priv-%d-%s", len(s.private)+1, name)
	s.private[key] = b
	return key, nil
}

func (s *fakeStore) UploadPublic(_ context.Context, name, _ string, body io.Reader, _ int64) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", "", s.uploadErr
	}
	b, _ := io.ReadAll(body)
	key := fmt.Sprintf("pub-%d-%s", len(s.public)+1, name)
	s.public[key] = b
	return key, "https://cdn.test/pub/" + key, nil
}

func (s *fakeStore) RemovePrivate(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedPrivate = append(s.removedPrivate, key)
	return nil
}

func (s *fakeStore) RemovePublic(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedPublic = append(s.removedPublic, key)
	return nil
}

func (s *fakeStore) SignedURL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", common.ErrorNotFound
	}
	return "https://signed.test/" + key, nil
}

func (s *fakeStore) KeyFromPublicURL(u string) (string, bool) {
	const prefix = "https://cdn.test/pub/"
	if !strings.HasPrefix(u, prefix) {
		return "", false
	}
	return strings.TrimPrefix(u, prefix), true
}

func upload(name, body string) *Upload {
	return &Upload{Name: name, ContentType: "application/octet-stream", Body: bytes.NewBufferString(body), Size: int64(len(body))}
}

type fakeGateway struct {
	got  payments.PreferenceRequest
	pref payments.Preference
	err  error
}

func (g *fakeGateway) CreatePreference(_ context.Context, req payments.PreferenceRequest) (payments.Preference, error) {
	g.got = req
	return g.pref, g.err
}

type sqlmockDB struct{ mock sqlmock.Sqlmock }
