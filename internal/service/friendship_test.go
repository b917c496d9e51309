package service

import (
	"context"
	"testing"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"
)

func friendship(t *testing.T, env *testEnv, a, b int64) *models.Friendship {
	t.Helper()
	f, err := env.svc.Friendship(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Friendship(%d, %d) error = %v", a, b, err)
	}
	return f
}

func TestInviteLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")

	_, err := env.svc.SendInvite(ctx, a, "nobody")
	expectErr(t, err, apperrors.ErrMemberNotFound)

	view, err := env.svc.SendInvite(ctx, a, "bob")
	if err != nil {
		t.Fatalf("SendInvite() error = %v", err)
	}
	if view.Status != models.FriendshipPending || view.Action != ActionInvited {
		t.Errorf("invite view = %+v", view)
	}

	// Пара уникальна в обе стороны
	_, err = env.svc.SendInvite(ctx, a, "bob")
	expectErr(t, err, apperrors.ErrInvitationExists)
	_, err = env.svc.SendInvite(ctx, b, "alice")
	expectErr(t, err, apperrors.ErrInvitationExists)

	_, err = env.svc.RemoveFriend(ctx, b, a)
	expectErr(t, err, apperrors.ErrNotFriends)

	if _, err := env.svc.RespondInvite(ctx, b, a, true); err != nil {
		t.Fatalf("RespondInvite() error = %v", err)
	}
	ok, err := env.svc.AreFriends(ctx, b, a)
	if err != nil || !ok {
		t.Fatalf("AreFriends() = %v, %v", ok, err)
	}
	_, err = env.svc.SendInvite(ctx, b, "alice")
	expectErr(t, err, apperrors.ErrAlreadyFriends)

	var rows int64
	env.db.Model(&models.Friendship{}).Count(&rows)
	if rows != 1 {
		t.Errorf("friendship rows = %d, want 1", rows)
	}

	if _, err := env.svc.RemoveFriend(ctx, b, a); err != nil {
		t.Fatalf("RemoveFriend() error = %v", err)
	}
	if f := friendship(t, env, a, b); f != nil {
		t.Errorf("friendship after remove = %+v", f)
	}
}

func TestDeclineInvite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")

	if _, err := env.svc.SendInvite(ctx, a, "bob"); err != nil {
		t.Fatalf("SendInvite() error = %v", err)
	}
	// Отправитель не может ответить на свое приглашение
	_, err := env.svc.RespondInvite(ctx, a, b, true)
	expectKind(t, err, apperrors.KindNotFound)

	view, err := env.svc.RespondInvite(ctx, b, a, false)
	if err != nil {
		t.Fatalf("RespondInvite(decline) error = %v", err)
	}
	if view.Action != ActionDeclined {
		t.Errorf("action = %q, want declined", view.Action)
	}
	if f := friendship(t, env, a, b); f != nil {
		t.Errorf("friendship after decline = %+v", f)
	}
}

func TestBlockDirection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)

	if _, err := env.svc.SetBlocked(ctx, a, b, true); err != nil {
		t.Fatalf("block error = %v", err)
	}
	f := friendship(t, env, a, b)
	if f.Status != models.FriendshipBlocked || f.FromUserID != a || f.ToUserID != b {
		t.Fatalf("after block = %+v, want BLOCKED(a->b)", f)
	}

	_, err := env.svc.SetBlocked(ctx, b, a, false)
	expectErr(t, err, apperrors.ErrYouAreBlocked)
	_, err = env.svc.SendInvite(ctx, b, "alice")
	expectErr(t, err, apperrors.ErrYouAreBlocked)
	_, err = env.svc.SendInvite(ctx, a, "bob")
	expectKind(t, err, apperrors.KindValidation)

	ok, err := env.svc.AreFriends(ctx, a, b)
	if err != nil || ok {
		t.Errorf("AreFriends() while blocked = %v, %v", ok, err)
	}

	if _, err := env.svc.SetBlocked(ctx, a, b, false); err != nil {
		t.Fatalf("unblock error = %v", err)
	}
	f = friendship(t, env, a, b)
	if f.Status != models.FriendshipFriend || f.FromUserID != a {
		t.Errorf("after unblock = %+v, want FRIEND(a->b)", f)
	}
}

func TestBlockByInvitee_Reorients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")
	env.befriend(t, a, b)

	if _, err := env.svc.SetBlocked(ctx, b, a, true); err != nil {
		t.Fatalf("block error = %v", err)
	}
	f := friendship(t, env, a, b)
	if f.FromUserID != b || f.ToUserID != a {
		t.Errorf("blocker must become from_user: %+v", f)
	}
	_, err := env.svc.RemoveFriend(ctx, a, b)
	expectErr(t, err, apperrors.ErrYouAreBlocked)
}

func TestNetworkerFriendshipGate(t *testing.T) {
	t.Run("condition met", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		u := env.human(t, "alice")
		ned := env.networker(t, "Ned")
		env.give(t, u, 1001, 1)

		view, err := env.svc.SendInvite(ctx, u, "Ned")
		if err != nil {
			t.Fatalf("SendInvite() error = %v", err)
		}
		if view.Status != models.FriendshipFriend || view.Action != ActionAccepted {
			t.Errorf("view = %+v", view)
		}
		f := friendship(t, env, u, ned)
		if f == nil || f.Status != models.FriendshipFriend || f.FromUserID != u {
			t.Fatalf("friendship = %+v, want FRIEND(u->ned)", f)
		}
		inbox := env.inbox(t, u)
		if len(inbox) != 1 || inbox[0].SenderID != ned || inbox[0].BodyID != 300 {
			t.Errorf("inbox = %+v, want success body 300 from Ned", inbox)
		}
		// Условие только проверяется, предмет не списывается
		if got := env.qty(t, u, 1001); got != 1 {
			t.Errorf("condition item qty = %d, want 1", got)
		}
	})

	t.Run("condition failed", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		u := env.human(t, "alice")
		ned := env.networker(t, "Ned")

		view, err := env.svc.SendInvite(ctx, u, "Ned")
		if err != nil {
			t.Fatalf("SendInvite() error = %v", err)
		}
		if view.Action != ActionDeclined {
			t.Errorf("action = %q, want declined", view.Action)
		}
		if f := friendship(t, env, u, ned); f != nil {
			t.Errorf("friendship = %+v, want none", f)
		}
		inbox := env.inbox(t, u)
		if len(inbox) != 1 || inbox[0].BodyID != 301 {
			t.Errorf("inbox = %+v, want failure body 301", inbox)
		}
	})

	t.Run("no condition", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		u := env.human(t, "alice")
		env.networker(t, "Pete")

		if _, err := env.svc.SendInvite(ctx, u, "Pete"); err != nil {
			t.Fatalf("SendInvite() error = %v", err)
		}
		if inbox := env.inbox(t, u); len(inbox) != 0 {
			t.Errorf("inbox = %+v, want empty", inbox)
		}
	})
}

func TestListFriends_HidesSecretNetworkers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.human(t, "alice")
	v := env.human(t, "bob")
	env.networker(t, "Sam")
	env.befriend(t, u, v)
	if _, err := env.svc.SendInvite(ctx, u, "Sam"); err != nil {
		t.Fatalf("SendInvite(Sam) error = %v", err)
	}

	own, err := env.svc.ListFriends(ctx, u, u)
	if err != nil {
		t.Fatalf("ListFriends() error = %v", err)
	}
	if len(own) != 2 {
		t.Errorf("owner sees %d friends, want 2", len(own))
	}

	visitor, err := env.svc.ListFriends(ctx, v, u)
	if err != nil {
		t.Fatalf("ListFriends() error = %v", err)
	}
	if len(visitor) != 1 || visitor[0].Username != "bob" {
		t.Errorf("visitor sees %+v, want only bob", visitor)
	}

	page, err := env.svc.GetPage(ctx, v, u)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(page.Friends) != 1 {
		t.Errorf("visitor page friends = %+v", page.Friends)
	}
}

func TestFriendshipEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.human(t, "alice")
	b := env.human(t, "bob")

	client, token := registerTestClient(t, env, b)
	if _, err := env.svc.RegisterWebhook(ctx, &AuthContext{Client: client, UserID: b, TokenID: token.ID},
		models.EventFriendships, "https://fans.test/friends", ""); err != nil {
		t.Fatalf("RegisterWebhook() error = %v", err)
	}

	env.befriend(t, a, b)
	got := env.notifier.events(models.EventFriendships)
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
	first := got[0].Payload.(models.FriendshipView)
	second := got[1].Payload.(models.FriendshipView)
	if first.Action != ActionInvited || second.Action != ActionAccepted {
		t.Errorf("actions = %s, %s", first.Action, second.Action)
	}
	if got[0].Secret != client.APIToken {
		t.Errorf("default secret must be the client api token")
	}
}
