package service

import (
	"context"
	"testing"

	"MLNCoreService/internal/models"
	"MLNCoreService/internal/repository/postgres"
	"MLNCoreService/pkg/apperrors"
)

func TestGetPage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	v := env.human(t, "bob")
	env.befriend(t, u, v)
	id := env.place(t, u, 3001, 2, 3)
	env.give(t, u, 3005, 1)
	if err := env.svc.SaveStatements(ctx, u, []models.AboutMeView{
		{QuestionID: 1, AnswerID: 12},
		{QuestionID: 2, AnswerID: 21},
		{QuestionID: 3, AnswerID: 31},
		{QuestionID: 4, AnswerID: 41},
		{QuestionID: 5, AnswerID: 52},
		{QuestionID: 6, AnswerID: 61},
	}); err != nil {
		t.Fatalf("SaveStatements() error = %v", err)
	}

	page, err := env.svc.GetPage(ctx, v, u)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if page.Username != "alice" || page.Avatar != defaultAvatar {
		t.Errorf("page = %+v", page)
	}
	// Модуль из инвентаря на странице не показывается
	if len(page.Modules) != 1 || page.Modules[0].ID != id || *page.Modules[0].PosX != 2 {
		t.Errorf("modules = %+v", page.Modules)
	}
	if len(page.AboutMe) != 6 || page.AboutMe[0].AnswerID != 12 || page.AboutMe[4].AnswerID != 52 {
		t.Errorf("about me = %+v", page.AboutMe)
	}
	if len(page.Friends) != 1 || page.Friends[0].UserID != v {
		t.Errorf("friends = %+v", page.Friends)
	}

	cached, ok := env.cache.GetPage(ctx, u, false)
	if !ok || cached != page {
		t.Errorf("visitor page not cached")
	}
	if _, ok := env.cache.GetPage(ctx, u, true); ok {
		t.Errorf("owner view must be cached separately")
	}

	_, err = env.svc.GetPage(ctx, v, u+100)
	expectKind(t, err, apperrors.KindNotFound)
}

func TestListInventoryModules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	env.give(t, u, 3001, 2)
	env.give(t, u, 3006, 1)
	env.give(t, u, 1001, 7)
	env.give(t, u, 6001, 1)

	mods, err := env.svc.ListInventoryModules(ctx, u)
	if err != nil {
		t.Fatalf("ListInventoryModules() error = %v", err)
	}
	want := []models.StackView{{ItemID: 3001, Qty: 2}, {ItemID: 3006, Qty: 1}}
	if len(mods) != len(want) {
		t.Fatalf("modules = %+v, want %+v", mods, want)
	}
	for i := range want {
		if mods[i] != want[i] {
			t.Errorf("modules[%d] = %+v, want %+v", i, mods[i], want[i])
		}
	}

	bgs, err := env.svc.ListModuleBackgrounds(ctx, u)
	if err != nil || len(bgs) != 1 || bgs[0].ItemID != 6001 {
		t.Errorf("ListModuleBackgrounds() = %+v, %v", bgs, err)
	}

	empty, err := env.svc.ListModuleBackgrounds(ctx, env.human(t, "bob"))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty backgrounds = %#v, %v", empty, err)
	}
}

// writeAfterRead фиксирует запись между чтением и заполнением кэша
type writeAfterRead struct {
	UnitOfWork
	hook func()
}

func (u *writeAfterRead) Read(ctx context.Context, operation string, fn func(repo *postgres.Repository) error) error {
	err := u.UnitOfWork.Read(ctx, operation, fn)
	if u.hook != nil {
		hook := u.hook
		u.hook = nil
		hook()
	}
	return err
}

func TestGetPage_ConcurrentWriteSkipsCacheFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	v := env.human(t, "bob")

	env.svc.uow = &writeAfterRead{UnitOfWork: env.svc.uow, hook: func() {
		if err := env.svc.SavePageOptions(ctx, u, PageOptions{Color: 3, ColumnColor: 4}); err != nil {
			t.Fatalf("SavePageOptions() error = %v", err)
		}
	}}

	stale, err := env.svc.GetPage(ctx, v, u)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if stale.Color != 0 {
		t.Fatalf("read must see the state before the write, color = %d", stale.Color)
	}
	if _, ok := env.cache.GetPage(ctx, u, false); ok {
		t.Fatal("page read before a concurrent write must not be cached")
	}

	fresh, err := env.svc.GetPage(ctx, v, u)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if fresh.Color != 3 || fresh.ColumnColor != 4 {
		t.Errorf("colors = %d/%d, want 3/4", fresh.Color, fresh.ColumnColor)
	}
	if _, ok := env.cache.GetPage(ctx, u, false); !ok {
		t.Error("page must be cached once no write interleaves")
	}
}

func TestListInbox_ConcurrentWriteSkipsCacheFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	v := env.human(t, "bob")
	env.befriend(t, u, v)

	env.svc.uow = &writeAfterRead{UnitOfWork: env.svc.uow, hook: func() {
		if _, err := env.svc.SendMessage(ctx, u, v, 100, nil); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}}

	inbox, err := env.svc.ListInbox(ctx, v)
	if err != nil {
		t.Fatalf("ListInbox() error = %v", err)
	}
	if len(inbox) != 0 {
		t.Fatalf("inbox = %+v, want empty snapshot", inbox)
	}
	if _, ok := env.cache.GetInbox(ctx, v); ok {
		t.Fatal("inbox read before a concurrent send must not be cached")
	}

	inbox, err = env.svc.ListInbox(ctx, v)
	if err != nil {
		t.Fatalf("ListInbox() error = %v", err)
	}
	if len(inbox) != 1 {
		t.Errorf("inbox = %+v, want one message", inbox)
	}
}

func TestStoreView_InvalidationDuringFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	page := &models.PageView{UserID: 42}

	epoch := env.svc.epochs.load(42)
	env.svc.storeView(ctx, 42, epoch, func() {
		env.cache.SetPage(ctx, page, false)
		env.svc.epochs.bump(42)
	})

	if _, ok := env.cache.GetPage(ctx, 42, false); ok {
		t.Error("entry written across an invalidation must be dropped")
	}
}
