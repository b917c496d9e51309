package service

import (
	"context"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// Действия, которые передаются в событии friendships
const (
	ActionInvited   = "invited"
	ActionAccepted  = "accepted"
	ActionDeclined  = "declined"
	ActionBlocked   = "blocked"
	ActionUnblocked = "unblocked"
	ActionRemoved   = "removed"
)

// notifyFriendship собирает представление отношения и отправляет событие обоим участникам
func (t *txn) notifyFriendship(from, to int64, status models.FriendshipStatus, action string) (*models.FriendshipView, error) {
	fromName, err := t.username(from)
	if err != nil {
		return nil, err
	}
	toName, err := t.username(to)
	if err != nil {
		return nil, err
	}
	view := &models.FriendshipView{
		FromUserID:   from,
		FromUsername: fromName,
		ToUserID:     to,
		ToUsername:   toName,
		Status:       status,
		Action:       action,
	}
	t.emit(from, models.EventFriendships, *view)
	t.emit(to, models.EventFriendships, *view)
	t.out.touch(from, to)
	return view, nil
}

// areFriends симметричная проверка дружбы
func (t *txn) areFriends(a, b int64) (bool, error) {
	f, err := t.repo.Friendship(a, b)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == models.FriendshipFriend, nil
}

// randomFriend равновероятно выбирает друга пользователя
func (t *txn) randomFriend(userID int64) (int64, bool, error) {
	ids, err := t.repo.FriendIDs(userID)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[t.rng.Intn(len(ids))], true, nil
}

// blockedError сообщает об ошибке, если отношение заблокировано другой стороной
func blockedError(f *models.Friendship, actor int64) error {
	if f.Status == models.FriendshipBlocked && f.FromUserID != actor {
		return apperrors.ErrYouAreBlocked
	}
	return nil
}

// SendInvite отправляет приглашение в друзья пользователю с именем username.
// Приглашение networker-у решается сразу по его условию дружбы.
func (s *Service) SendInvite(ctx context.Context, actorID int64, username string) (*models.FriendshipView, error) {
	var view *models.FriendshipView
	err := s.run(ctx, "friend_send_invitation", func(t *txn) error {
		target, err := t.repo.UserByName(username)
		if apperrors.IsNotFound(err) {
			return apperrors.ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		if target.ID == actorID {
			return apperrors.Validation("cannot invite yourself")
		}

		existing, err := t.repo.FriendshipBetween(actorID, target.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := blockedError(existing, actorID); err != nil {
				return err
			}
			switch existing.Status {
			case models.FriendshipFriend:
				return apperrors.ErrAlreadyFriends
			case models.FriendshipBlocked:
				return apperrors.Validation("user %d is blocked, unblock first", target.ID)
			default:
				return apperrors.ErrInvitationExists
			}
		}

		networker, err := t.isNetworker(target.ID)
		if err != nil {
			return err
		}
		if networker {
			view, err = t.inviteNetworker(actorID, target)
			return err
		}

		f := &models.Friendship{FromUserID: actorID, ToUserID: target.ID, Status: models.FriendshipPending}
		if err := t.repo.CreateFriendship(f); err != nil {
			return err
		}
		view, err = t.notifyFriendship(actorID, target.ID, f.Status, ActionInvited)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Friend invitation processed",
		zap.Int64("user_id", actorID),
		zap.String("target", username),
		zap.String("action", view.Action))
	return view, nil
}

// inviteNetworker применяет условие дружбы networker-а: при выполнении дружба возникает
// сразу и приходит письмо success_body, иначе приходит failure_body и отношения нет
func (t *txn) inviteNetworker(actorID int64, networker *models.User) (*models.FriendshipView, error) {
	t.names[networker.ID] = networker.Username

	cond, ok := t.catalog.FriendshipCondition(networker.Username)
	accepted := true
	if ok && cond.ConditionItem != nil {
		has, err := t.has(actorID, *cond.ConditionItem, 1)
		if err != nil {
			return nil, err
		}
		accepted = has
	}

	if !accepted {
		if _, err := t.sendBody(networker.ID, actorID, cond.FailureBody); err != nil {
			return nil, err
		}
		return t.notifyFriendship(actorID, networker.ID, "", ActionDeclined)
	}

	f := &models.Friendship{FromUserID: actorID, ToUserID: networker.ID, Status: models.FriendshipFriend}
	if err := t.repo.CreateFriendship(f); err != nil {
		return nil, err
	}
	if ok {
		if _, err := t.sendBody(networker.ID, actorID, cond.SuccessBody); err != nil {
			return nil, err
		}
	}
	return t.notifyFriendship(actorID, networker.ID, f.Status, ActionAccepted)
}

// RespondInvite принимает или отклоняет приглашение от requesterID
func (s *Service) RespondInvite(ctx context.Context, actorID, requesterID int64, accept bool) (*models.FriendshipView, error) {
	var view *models.FriendshipView
	err := s.run(ctx, "friend_process_invitation", func(t *txn) error {
		f, err := t.repo.FriendshipBetween(actorID, requesterID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperrors.NotFound("invitation from %d", requesterID)
		}
		if err := blockedError(f, actorID); err != nil {
			return err
		}
		switch f.Status {
		case models.FriendshipFriend:
			return apperrors.ErrAlreadyFriends
		case models.FriendshipBlocked:
			return apperrors.Validation("user %d is blocked", requesterID)
		}
		if f.ToUserID != actorID {
			return apperrors.NotFound("invitation from %d", requesterID)
		}

		if !accept {
			if err := t.repo.DeleteFriendship(f.ID); err != nil {
				return err
			}
			view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, "", ActionDeclined)
			return err
		}

		f.Status = models.FriendshipFriend
		if err := t.repo.SaveFriendship(f); err != nil {
			return err
		}
		view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, f.Status, ActionAccepted)
		return err
	})
	return view, err
}

// SetBlocked блокирует друга или снимает блокировку. Блокирующий становится from_user,
// поэтому снять блокировку может только он.
func (s *Service) SetBlocked(ctx context.Context, actorID, otherID int64, block bool) (*models.FriendshipView, error) {
	var view *models.FriendshipView
	err := s.run(ctx, "friend_process_blocking", func(t *txn) error {
		f, err := t.repo.FriendshipBetween(actorID, otherID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperrors.ErrNotFriends
		}
		if err := blockedError(f, actorID); err != nil {
			return err
		}

		action := ActionUnblocked
		switch {
		case block && f.Status == models.FriendshipFriend:
			f.FromUserID, f.ToUserID = actorID, otherID
			f.Status = models.FriendshipBlocked
			action = ActionBlocked
		case block && f.Status == models.FriendshipBlocked:
			view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, f.Status, ActionBlocked)
			return err
		case !block && f.Status == models.FriendshipBlocked:
			f.Status = models.FriendshipFriend
		case !block && f.Status == models.FriendshipFriend:
			view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, f.Status, ActionUnblocked)
			return err
		default:
			return apperrors.ErrNotFriends
		}

		if err := t.repo.SaveFriendship(f); err != nil {
			return err
		}
		view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, f.Status, action)
		return err
	})
	return view, err
}

// RemoveFriend разрывает дружбу; доступно любой стороне
func (s *Service) RemoveFriend(ctx context.Context, actorID, otherID int64) (*models.FriendshipView, error) {
	var view *models.FriendshipView
	err := s.run(ctx, "friend_remove_member", func(t *txn) error {
		f, err := t.repo.FriendshipBetween(actorID, otherID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperrors.ErrNotFriends
		}
		if err := blockedError(f, actorID); err != nil {
			return err
		}
		if f.Status == models.FriendshipPending {
			return apperrors.ErrNotFriends
		}
		if err := t.repo.DeleteFriendship(f.ID); err != nil {
			return err
		}
		view, err = t.notifyFriendship(f.FromUserID, f.ToUserID, "", ActionRemoved)
		return err
	})
	return view, err
}

// AreFriends симметричная проверка дружбы
func (s *Service) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	var ok bool
	err := s.read(ctx, "friend_are_friends", func(t *txn) error {
		var err error
		ok, err = t.areFriends(a, b)
		return err
	})
	return ok, err
}

// Friendship возвращает отношение пары или nil
func (s *Service) Friendship(ctx context.Context, a, b int64) (*models.Friendship, error) {
	var f *models.Friendship
	err := s.read(ctx, "friend_get", func(t *txn) error {
		var err error
		f, err = t.repo.Friendship(a, b)
		return err
	})
	return f, err
}

// RandomFriend возвращает случайного друга; ok=false, если друзей нет
func (s *Service) RandomFriend(ctx context.Context, userID int64) (int64, bool, error) {
	var (
		id int64
		ok bool
	)
	err := s.read(ctx, "friend_random", func(t *txn) error {
		var err error
		id, ok, err = t.randomFriend(userID)
		return err
	})
	return id, ok, err
}

// ListFriends друзья владельца; секретные networker-ы видны только самому владельцу
func (s *Service) ListFriends(ctx context.Context, viewerID, ownerID int64) ([]models.FriendView, error) {
	var out []models.FriendView
	err := s.read(ctx, "friend_list", func(t *txn) error {
		var err error
		out, err = t.friendViews(ownerID, viewerID == ownerID)
		return err
	})
	return out, err
}

func (t *txn) friendViews(ownerID int64, asOwner bool) ([]models.FriendView, error) {
	ids, err := t.repo.FriendIDs(ownerID)
	if err != nil {
		return nil, err
	}
	profiles, err := t.repo.Profiles(ids)
	if err != nil {
		return nil, err
	}
	names, err := t.repo.Usernames(ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.FriendView, 0, len(ids))
	for _, id := range ids {
		if p, ok := profiles[id]; ok && p.IsSecret && !asOwner {
			continue
		}
		out = append(out, models.FriendView{UserID: id, Username: names[id]})
	}
	return out, nil
}
