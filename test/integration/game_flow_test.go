//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	grpcHandler "MLNCoreService/internal/delivery/grpc"
	"MLNCoreService/internal/models"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/legacy"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TestGameFlowIntegration полный цикл: дружба, модуль на странице, клик, письмо с вложением
func TestGameFlowIntegration(t *testing.T) {
	ctx := context.Background()
	alice := newUser(t, "alice")
	bob := newUser(t, "bob")
	befriend(t, alice, bob)

	if err := core.AddItems(ctx, alice, 3001, 1); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if err := core.AddItems(ctx, alice, 1003, 4); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}

	// 1. Модуль на странице
	var layout grpcHandler.LayoutResponse
	err := invoke(ctx, alice, legacy.RequestPageSaveLayout,
		&grpcHandler.LayoutRequest{Modules: []grpcHandler.LayoutItem{{ItemID: 3001, X: 0, Y: 0}}}, &layout)
	if err != nil {
		t.Fatalf("PageSaveLayout error = %v", err)
	}
	if len(layout.Modules) != 1 {
		t.Fatalf("layout = %+v", layout.Modules)
	}
	moduleID := layout.Modules[0].ID

	// 2. Страница в представлении посетителя попадает в Redis
	var page models.PageView
	if err := invoke(ctx, bob, legacy.RequestPageGetNew, map[string]any{"user_id": alice}, &page); err != nil {
		t.Fatalf("PageGetNew error = %v", err)
	}
	if len(page.Modules) != 1 || page.Modules[0].ID != moduleID {
		t.Errorf("page modules = %+v", page.Modules)
	}
	if n, err := redisClient.Exists(ctx, fmt.Sprintf("page:%d", alice)).Result(); err != nil || n != 1 {
		t.Errorf("page cache exists = %d, %v", n, err)
	}

	// 3. Клик друга
	var click service.ClickResult
	if err := invoke(ctx, bob, legacy.RequestModuleVote, map[string]any{"module_id": moduleID}, &click); err != nil {
		t.Fatalf("ModuleVote error = %v", err)
	}
	if click.Module.TotalClicks != 1 {
		t.Errorf("total clicks = %d, want 1", click.Module.TotalClicks)
	}

	// Клик по своему модулю отклоняется с идентификатором ошибки
	var trailer metadata.MD
	err = invoke(ctx, alice, legacy.RequestModuleVote, map[string]any{"module_id": moduleID},
		&service.ClickResult{}, grpc.Trailer(&trailer))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("own click code = %v, want FailedPrecondition", status.Code(err))
	}
	if len(trailer.Get(grpcHandler.TrailerErrorID)) != 1 {
		t.Errorf("trailer = %v", trailer)
	}

	// 4. Письмо с вложением и его открепление
	var sent models.MessageView
	err = invoke(ctx, alice, legacy.RequestMessageSendWithAttachment, &grpcHandler.SendRequest{
		BodyID:      100,
		Attachments: []models.StackView{{ItemID: 1003, Qty: 4}},
	}, &sent)
	if err == nil {
		t.Fatalf("send without recipient must fail")
	}
	err = invoke(ctx, alice, legacy.RequestMessageSendWithAttachment, map[string]any{
		"recipient_id": bob,
		"body_id":      100,
		"attachments":  []models.StackView{{ItemID: 1003, Qty: 4}},
	}, &sent)
	if err != nil {
		t.Fatalf("MessageSendWithAttachment error = %v", err)
	}

	var inbox grpcHandler.InboxResponse
	if err := invoke(ctx, bob, legacy.RequestMessageList, &grpcHandler.Empty{}, &inbox); err != nil {
		t.Fatalf("MessageList error = %v", err)
	}
	if len(inbox.Messages) != 1 || inbox.Messages[0].ID != sent.ID {
		t.Fatalf("inbox = %+v", inbox.Messages)
	}

	var detached grpcHandler.ItemsResponse
	if err := invoke(ctx, bob, legacy.RequestMessageDetach, map[string]any{"message_id": sent.ID}, &detached); err != nil {
		t.Fatalf("MessageDetach error = %v", err)
	}
	if len(detached.Items) != 1 || detached.Items[0].Qty != 4 {
		t.Errorf("detached = %+v", detached.Items)
	}
}

// TestConcurrentClicks проверяет, что параллельные клики не теряют счетчик
func TestConcurrentClicks(t *testing.T) {
	ctx := context.Background()
	owner := newUser(t, "owner")
	if err := core.AddItems(ctx, owner, 3006, 1); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	var layout grpcHandler.LayoutResponse
	err := invoke(ctx, owner, legacy.RequestPageSaveLayout,
		&grpcHandler.LayoutRequest{Modules: []grpcHandler.LayoutItem{{ItemID: 3006, X: 1, Y: 1}}}, &layout)
	if err != nil {
		t.Fatalf("PageSaveLayout error = %v", err)
	}
	moduleID := layout.Modules[0].ID

	const friends, clicksEach = 5, 4
	clickers := make([]int64, friends)
	for i := range clickers {
		clickers[i] = newUser(t, fmt.Sprintf("clicker%d", i))
		befriend(t, owner, clickers[i])
	}

	var wg sync.WaitGroup
	errs := make(chan error, friends*clicksEach)
	for _, c := range clickers {
		for i := 0; i < clicksEach; i++ {
			wg.Add(1)
			go func(clicker int64) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				errs <- invoke(ctx, clicker, legacy.RequestModuleVote, map[string]any{"module_id": moduleID}, &service.ClickResult{})
			}(c)
		}
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err != nil {
			t.Logf("Click error: %v", err)
			continue
		}
		succeeded++
	}
	if succeeded != friends*clicksEach {
		t.Errorf("succeeded = %d, want %d", succeeded, friends*clicksEach)
	}

	details, err := core.ModuleDetails(ctx, owner, moduleID)
	if err != nil {
		t.Fatalf("ModuleDetails() error = %v", err)
	}
	if details.Module.TotalClicks != succeeded {
		t.Errorf("total clicks = %d, want %d", details.Module.TotalClicks, succeeded)
	}
}

// TestUserDuplication проверяет отказ при повторном имени
func TestUserDuplication(t *testing.T) {
	ctx := context.Background()
	id := newUser(t, "dup")
	u, err := core.User(ctx, id)
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if _, err := core.CreateUser(ctx, u.Username, service.NewUser{}); err == nil {
		t.Fatal("expected conflict for duplicate username")
	}
}

// TestConcurrentItemDelivery параллельная выдача нового предмета одному владельцу
// сливается в одну стопку без конфликтов
func TestConcurrentItemDelivery(t *testing.T) {
	ctx := context.Background()
	owner := newUser(t, "delivery")

	const workers, each = 8, 3
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- core.AddItems(ctx, owner, 1002, each)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("AddItems error = %v", err)
		}
	}

	inv, err := core.ListInventory(ctx, owner)
	if err != nil {
		t.Fatalf("ListInventory() error = %v", err)
	}
	stacks := 0
	for _, st := range inv {
		if st.ItemID == 1002 {
			stacks++
			if st.Qty != workers*each {
				t.Errorf("qty = %d, want %d", st.Qty, workers*each)
			}
		}
	}
	if stacks != 1 {
		t.Errorf("stacks of 1002 = %d, want 1", stacks)
	}
}
