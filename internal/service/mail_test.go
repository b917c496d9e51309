package service

import (
	"context"
	"testing"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"
)

func TestSendMessage_Ledger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)
	env.give(t, a, 1003, 10)

	msg, err := env.svc.SendMessage(ctx, a, b, 100, []models.StackView{
		{ItemID: 1003, Qty: 2},
		{ItemID: 1003, Qty: 1},
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Qty != 3 {
		t.Errorf("attachments = %+v, want merged 1003x3", msg.Attachments)
	}
	if msg.ReplyMode != models.ReplyModeNormalAndEasy || len(msg.EasyReplies) != 2 {
		t.Errorf("reply mode = %v %v", msg.ReplyMode, msg.EasyReplies)
	}

	// В пути: отправитель потерял три, получатель еще ничего не получил
	if got := env.qty(t, a, 1003); got != 7 {
		t.Errorf("sender qty = %d, want 7", got)
	}
	if got := env.qty(t, b, 1003); got != 0 {
		t.Errorf("recipient qty before detach = %d, want 0", got)
	}

	// Чужое письмо не открывается
	_, err = env.svc.OpenMessage(ctx, a, msg.ID)
	expectKind(t, err, apperrors.KindNotFound)

	opened, err := env.svc.OpenMessage(ctx, b, msg.ID)
	if err != nil || !opened.IsRead {
		t.Fatalf("OpenMessage() = %+v, %v", opened, err)
	}

	got, err := env.svc.DetachMessage(ctx, b, msg.ID)
	if err != nil {
		t.Fatalf("DetachMessage() error = %v", err)
	}
	if len(got) != 1 || got[0].Qty != 3 {
		t.Errorf("detached = %+v", got)
	}
	if q := env.qty(t, b, 1003); q != 3 {
		t.Errorf("recipient qty = %d, want 3", q)
	}

	// Повторное снятие вложений ничего не дает
	again, err := env.svc.DetachMessage(ctx, b, msg.ID)
	if err != nil || len(again) != 0 {
		t.Errorf("second detach = %+v, %v", again, err)
	}
}

func TestSendMessage_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	c := env.human(t, "carol")
	env.befriend(t, a, b)
	env.give(t, a, 1003, 2)
	env.give(t, a, 1004, 1)

	tests := []struct {
		name        string
		recipient   int64
		body        int64
		attachments []models.StackView
		wantErr     error
		wantKind    apperrors.Kind
	}{
		{name: "not friends", recipient: c, body: 100, wantErr: apperrors.ErrNotFriends},
		{name: "not mailable", recipient: b, body: 100, attachments: []models.StackView{{ItemID: 1004, Qty: 1}}, wantErr: apperrors.ErrItemNotMailable},
		{name: "insufficient", recipient: b, body: 100, attachments: []models.StackView{{ItemID: 1003, Qty: 5}}, wantErr: apperrors.ErrInsufficientItems},
		{name: "unknown body", recipient: b, body: 999, wantKind: apperrors.KindValidation},
		{name: "unknown recipient", recipient: 424242, body: 100, wantErr: apperrors.ErrMemberNotFound},
		{name: "zero qty", recipient: b, body: 100, attachments: []models.StackView{{ItemID: 1003, Qty: 0}}, wantKind: apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.SendMessage(ctx, a, tt.recipient, tt.body, tt.attachments)
			if tt.wantErr != nil {
				expectErr(t, err, tt.wantErr)
			} else {
				expectKind(t, err, tt.wantKind)
			}
		})
	}

	if got := env.qty(t, a, 1003); got != 2 {
		t.Errorf("sender qty after rejections = %d, want 2", got)
	}
	if inbox := env.inbox(t, b); len(inbox) != 0 {
		t.Errorf("recipient inbox = %+v, want empty", inbox)
	}
}

func TestDeleteMessage_DetachesFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)
	env.give(t, a, 1002, 4)

	msg, err := env.svc.SendMessage(ctx, a, b, 100, []models.StackView{{ItemID: 1002, Qty: 4}})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	got, err := env.svc.DeleteMessage(ctx, b, msg.ID)
	if err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if len(got) != 1 || got[0].Qty != 4 {
		t.Errorf("returned = %+v", got)
	}
	if q := env.qty(t, b, 1002); q != 4 {
		t.Errorf("recipient qty = %d, want 4", q)
	}
	if inbox := env.inbox(t, b); len(inbox) != 0 {
		t.Errorf("inbox = %+v, want empty", inbox)
	}
	var atts int64
	env.db.Model(&models.Attachment{}).Count(&atts)
	if atts != 0 {
		t.Errorf("attachment rows = %d, want 0", atts)
	}
}

func TestEasyReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	v := env.human(t, "bob")
	env.befriend(t, u, v)

	// Ответ без исходного письма
	_, err := env.svc.EasyReply(ctx, u, v, 100, 200, nil)
	expectKind(t, err, apperrors.KindNotFound)

	if _, err := env.svc.SendMessage(ctx, v, u, 100, nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	_, err = env.svc.EasyReply(ctx, u, v, 100, 300, nil)
	expectKind(t, err, apperrors.KindValidation)

	reply, err := env.svc.EasyReply(ctx, u, v, 100, 200, nil)
	if err != nil {
		t.Fatalf("EasyReply() error = %v", err)
	}
	if reply.SenderID != u || reply.RecipientID != v || reply.BodyID != 200 {
		t.Errorf("reply = %+v", reply)
	}
	if reply.ReplyBodyID == nil || *reply.ReplyBodyID != 100 {
		t.Errorf("reply body = %v, want 100", reply.ReplyBodyID)
	}
	if reply.ReplyMode != models.ReplyModeNormalOnly {
		t.Errorf("reply mode = %v, want normal only", reply.ReplyMode)
	}
}

func TestConsolidateInbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)
	env.give(t, a, 1003, 6)

	for _, qty := range []int{1, 2, 3} {
		if _, err := env.svc.SendMessage(ctx, a, b, 100, []models.StackView{{ItemID: 1003, Qty: qty}}); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}
	if _, err := env.svc.SendMessage(ctx, a, b, 201, nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	first := env.inbox(t, b)[0].ID

	removed, err := env.svc.ConsolidateInbox(ctx, b)
	if err != nil {
		t.Fatalf("ConsolidateInbox() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	inbox := env.inbox(t, b)
	if len(inbox) != 2 {
		t.Fatalf("inbox size = %d, want 2", len(inbox))
	}
	if inbox[0].ID != first || len(inbox[0].Attachments) != 1 || inbox[0].Attachments[0].Qty != 6 {
		t.Errorf("survivor = %+v, want oldest message with 1003x6", inbox[0])
	}
}

func TestNetworkerReplies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	ned := env.networker(t, "Ned")
	env.give(t, u, 1001, 1)
	if _, err := env.svc.SendInvite(ctx, u, "Ned"); err != nil {
		t.Fatalf("SendInvite() error = %v", err)
	}

	// Тело 200 запускает ответ Ned шаблоном 10
	if _, err := env.svc.SendMessage(ctx, u, ned, 200, nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	inbox := env.inbox(t, u)
	if len(inbox) != 2 {
		t.Fatalf("inbox = %+v, want welcome and template reply", inbox)
	}
	reply := inbox[1]
	if reply.SenderID != ned || reply.BodyID != 400 || len(reply.Attachments) != 1 || reply.Attachments[0].Qty != 2 {
		t.Fatalf("reply = %+v, want template 10", reply)
	}

	// Получение кирпичей от Ned запускает шаблон 11
	if _, err := env.svc.DetachMessage(ctx, u, reply.ID); err != nil {
		t.Fatalf("DetachMessage() error = %v", err)
	}
	if got := env.qty(t, u, 1001); got != 3 {
		t.Errorf("bricks = %d, want 3", got)
	}
	inbox = env.inbox(t, u)
	if len(inbox) != 3 || inbox[2].BodyID != 401 {
		t.Fatalf("inbox = %+v, want item obtained reply", inbox)
	}

	// Вложение 1002 срабатывает для любого networker-а
	env.give(t, u, 1002, 1)
	if _, err := env.svc.SendMessage(ctx, u, ned, 201, []models.StackView{{ItemID: 1002, Qty: 1}}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	inbox = env.inbox(t, u)
	if len(inbox) != 4 || inbox[3].BodyID != 401 {
		t.Errorf("inbox = %+v, want attachment reply", inbox)
	}
}

func TestMessageEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)

	client, token := registerTestClient(t, env, b)
	if _, err := env.svc.RegisterWebhook(ctx, &AuthContext{Client: client, UserID: b, TokenID: token.ID},
		models.EventMessages, "https://fans.test/mail", ""); err != nil {
		t.Fatalf("RegisterWebhook() error = %v", err)
	}

	if _, err := env.svc.SendMessage(ctx, a, b, 100, nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	// Письмо от b к a не касается подписки b
	if _, err := env.svc.SendMessage(ctx, b, a, 100, nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	got := env.notifier.events(models.EventMessages)
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	view := got[0].Payload.(models.MessageView)
	if view.SenderName != "alice" || view.Subject != "Hello" {
		t.Errorf("payload = %+v", view)
	}
}
