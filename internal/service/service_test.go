package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/clock"
	"MLNCoreService/internal/models"
	"MLNCoreService/internal/repository/postgres"
	"MLNCoreService/pkg/apperrors"
	"MLNCoreService/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// recordingNotifier запоминает доставки вместо отправки по сети
type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (n *recordingNotifier) Dispatch(deliveries []Delivery) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, deliveries...)
}

func (n *recordingNotifier) events(kind string) []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Delivery
	for _, d := range n.deliveries {
		if d.Event == kind {
			out = append(out, d)
		}
	}
	return out
}

// mapCache кэш в памяти для проверки инвалидации
type mapCache struct {
	mu          sync.Mutex
	pages       map[int64]*models.PageView
	inboxes     map[int64][]models.MessageView
	invalidated []int64
}

func newMapCache() *mapCache {
	return &mapCache{pages: map[int64]*models.PageView{}, inboxes: map[int64][]models.MessageView{}}
}

func (c *mapCache) GetPage(_ context.Context, ownerID int64, asOwner bool) (*models.PageView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[pageKey(ownerID, asOwner)]
	return p, ok
}

func (c *mapCache) SetPage(_ context.Context, page *models.PageView, asOwner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[pageKey(page.UserID, asOwner)] = page
}

func (c *mapCache) GetInbox(_ context.Context, userID int64) ([]models.MessageView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox, ok := c.inboxes[userID]
	return inbox, ok
}

func (c *mapCache) SetInbox(_ context.Context, userID int64, inbox []models.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inboxes[userID] = inbox
}

func (c *mapCache) Invalidate(_ context.Context, userIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.pages, pageKey(id, true))
		delete(c.pages, pageKey(id, false))
		delete(c.inboxes, id)
		c.invalidated = append(c.invalidated, id)
	}
}

func pageKey(id int64, asOwner bool) int64 {
	if asOwner {
		return -id
	}
	return id
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	clock    *clock.Fixed
	rng      *clock.Scripted
	notifier *recordingNotifier
	cache    *mapCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()
	db, err := database.NewSQLiteDB(name, logger)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cat, err := catalog.Load("../../config/catalog.yaml")
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}

	env := &testEnv{
		db:       db,
		clock:    clock.NewFixed(testNow),
		rng:      clock.NewScripted(),
		notifier: &recordingNotifier{},
		cache:    newMapCache(),
	}
	env.svc = NewService(postgres.NewStore(db, logger), cat, logger,
		WithClock(env.clock),
		WithRandom(env.rng),
		WithNotifier(env.notifier),
		WithCache(env.cache),
	)
	return env
}

func (e *testEnv) human(t *testing.T, name string) int64 {
	t.Helper()
	u, err := e.svc.CreateUser(context.Background(), name, NewUser{})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u.ID
}

// networker создает networker-а из каталога
func (e *testEnv) networker(t *testing.T, name string) int64 {
	t.Helper()
	for _, n := range e.svc.Catalog().Networkers() {
		if n.Username != name {
			continue
		}
		u, err := e.svc.CreateUser(context.Background(), name, NewUser{
			Networker: true,
			Secret:    n.Secret,
			Pseudo:    n.Pseudo,
			Rank:      n.Rank,
			Avatar:    n.Avatar,
		})
		if err != nil {
			t.Fatalf("CreateUser(%s) error = %v", name, err)
		}
		return u.ID
	}
	t.Fatalf("networker %s is not in the catalog", name)
	return 0
}

func (e *testEnv) give(t *testing.T, userID, itemID int64, n int) {
	t.Helper()
	if err := e.svc.AddItems(context.Background(), userID, itemID, n); err != nil {
		t.Fatalf("AddItems(%d, %d, %d) error = %v", userID, itemID, n, err)
	}
}

func (e *testEnv) qty(t *testing.T, userID, itemID int64) int {
	t.Helper()
	inv, err := e.svc.ListInventory(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListInventory(%d) error = %v", userID, err)
	}
	for _, st := range inv {
		if st.ItemID == itemID {
			return st.Qty
		}
	}
	return 0
}

func (e *testEnv) befriend(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	var name string
	if err := e.db.Model(&models.User{}).Where("id = ?", b).Pluck("username", &name).Error; err != nil {
		t.Fatalf("lookup user %d: %v", b, err)
	}
	if _, err := e.svc.SendInvite(ctx, a, name); err != nil {
		t.Fatalf("SendInvite(%d, %s) error = %v", a, name, err)
	}
	if _, err := e.svc.RespondInvite(ctx, b, a, true); err != nil {
		t.Fatalf("RespondInvite(%d, %d) error = %v", b, a, err)
	}
}

// place кладет модуль в инвентарь и ставит его на страницу
func (e *testEnv) place(t *testing.T, ownerID, itemID int64, x, y int) int64 {
	t.Helper()
	ctx := context.Background()

	modules, err := e.svc.GetPage(ctx, ownerID, ownerID)
	if err != nil {
		t.Fatalf("GetPage(%d) error = %v", ownerID, err)
	}
	entries := make([]LayoutEntry, 0, len(modules.Modules)+1)
	for _, m := range modules.Modules {
		id := m.ID
		entries = append(entries, LayoutEntry{ModuleID: &id, ItemID: m.ItemID, X: *m.PosX, Y: *m.PosY})
	}
	entries = append(entries, LayoutEntry{ItemID: itemID, X: x, Y: y})

	e.give(t, ownerID, itemID, 1)
	views, err := e.svc.SaveLayout(ctx, ownerID, entries)
	if err != nil {
		t.Fatalf("SaveLayout(%d) error = %v", ownerID, err)
	}
	return views[len(views)-1].ID
}

func (e *testEnv) module(t *testing.T, id int64) *models.Module {
	t.Helper()
	var m models.Module
	if err := e.db.First(&m, id).Error; err != nil {
		t.Fatalf("load module %d: %v", id, err)
	}
	return &m
}

func (e *testEnv) profile(t *testing.T, userID int64) *models.Profile {
	t.Helper()
	var p models.Profile
	if err := e.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		t.Fatalf("load profile %d: %v", userID, err)
	}
	return &p
}

func (e *testEnv) inbox(t *testing.T, userID int64) []models.MessageView {
	t.Helper()
	inbox, err := e.svc.ListInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListInbox(%d) error = %v", userID, err)
	}
	return inbox
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

func expectKind(t *testing.T, err error, want apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want kind %s", want)
	}
	if got := apperrors.KindOf(err); got != want {
		t.Fatalf("error kind = %s (%v), want %s", got, err, want)
	}
}
