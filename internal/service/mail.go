package service

import (
	"context"
	"sort"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// outgoing письмо, которое собирается отправить ядро
type outgoing struct {
	senderID    int64
	recipientID int64
	bodyID      int64
	replyBodyID *int64
	attachments []catalog.Stack
	// system письмо по шаблону: вложения создаются, а не списываются, дружба не нужна
	system bool
}

// mergeStacks объединяет повторяющиеся предметы и проверяет количества
func mergeStacks(stacks []catalog.Stack) ([]catalog.Stack, error) {
	byItem := make(map[int64]int, len(stacks))
	order := make([]int64, 0, len(stacks))
	for _, st := range stacks {
		if st.Qty <= 0 {
			return nil, apperrors.Validation("attachment %d has non-positive qty %d", st.Item, st.Qty)
		}
		if _, ok := byItem[st.Item]; !ok {
			order = append(order, st.Item)
		}
		byItem[st.Item] += st.Qty
	}
	out := make([]catalog.Stack, 0, len(order))
	for _, item := range order {
		out = append(out, catalog.Stack{Item: item, Qty: byItem[item]})
	}
	return out, nil
}

// send отправляет письмо. Вложения списываются у отправителя до сохранения письма
// в той же транзакции; письмо человека networker-у ставится в очередь автоответов.
func (t *txn) send(m outgoing) (*models.Message, error) {
	if _, ok := t.catalog.Body(m.bodyID); !ok {
		return nil, apperrors.Validation("unknown message body %d", m.bodyID)
	}
	if _, err := t.repo.UserByID(m.recipientID); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.ErrMemberNotFound
		}
		return nil, err
	}
	if m.senderID == m.recipientID {
		return nil, apperrors.Validation("cannot send mail to yourself")
	}

	senderNetworker, err := t.isNetworker(m.senderID)
	if err != nil {
		return nil, err
	}
	if !senderNetworker && !m.system {
		friends, err := t.areFriends(m.senderID, m.recipientID)
		if err != nil {
			return nil, err
		}
		if !friends {
			return nil, apperrors.ErrNotFriends
		}
	}

	stacks, err := mergeStacks(m.attachments)
	if err != nil {
		return nil, err
	}
	attachments := make([]models.Attachment, 0, len(stacks))
	for _, st := range stacks {
		item, ok := t.catalog.Item(st.Item)
		if !ok {
			return nil, apperrors.Validation("unknown item %d", st.Item)
		}
		if !senderNetworker && !m.system && !item.Mailable {
			return nil, apperrors.ErrItemNotMailable
		}
		if !m.system {
			if err := t.remove(m.senderID, st.Item, st.Qty); err != nil {
				return nil, err
			}
		}
		attachments = append(attachments, models.Attachment{ItemID: st.Item, Qty: st.Qty})
	}

	msg := &models.Message{
		SenderID:    m.senderID,
		RecipientID: m.recipientID,
		BodyID:      m.bodyID,
		ReplyBodyID: m.replyBodyID,
	}
	if err := t.repo.CreateMessage(msg, attachments); err != nil {
		return nil, err
	}
	t.out.touch(m.senderID, m.recipientID)

	view, err := t.messageView(msg, attachments)
	if err != nil {
		return nil, err
	}
	t.emit(m.recipientID, models.EventMessages, *view)

	recipientNetworker, err := t.isNetworker(m.recipientID)
	if err != nil {
		return nil, err
	}
	if recipientNetworker && !senderNetworker {
		items := make([]int64, 0, len(attachments))
		for _, a := range attachments {
			items = append(items, a.ItemID)
		}
		t.out.inbound = append(t.out.inbound, inboundMail{
			networkerID: m.recipientID,
			senderID:    m.senderID,
			bodyID:      m.bodyID,
			items:       items,
		})
	}
	return msg, nil
}

// sendBody отправляет системное письмо без вложений
func (t *txn) sendBody(senderID, recipientID, bodyID int64) (*models.Message, error) {
	return t.send(outgoing{senderID: senderID, recipientID: recipientID, bodyID: bodyID, system: true})
}

// sendTemplate отправляет письмо по каталожному шаблону
func (t *txn) sendTemplate(senderID, recipientID, templateID int64) (*models.Message, error) {
	tpl, ok := t.catalog.Template(templateID)
	if !ok {
		return nil, apperrors.Internal("unknown message template", nil)
	}
	return t.send(outgoing{
		senderID:    senderID,
		recipientID: recipientID,
		bodyID:      tpl.Body,
		attachments: tpl.Attachments,
		system:      true,
	})
}

// messageView собирает полное представление письма
func (t *txn) messageView(msg *models.Message, attachments []models.Attachment) (*models.MessageView, error) {
	sender, err := t.username(msg.SenderID)
	if err != nil {
		return nil, err
	}
	recipient, err := t.username(msg.RecipientID)
	if err != nil {
		return nil, err
	}
	return buildMessageView(t.catalog, msg, attachments, sender, recipient), nil
}

func buildMessageView(cat *catalog.Catalog, msg *models.Message, attachments []models.Attachment, sender, recipient string) *models.MessageView {
	body, _ := cat.Body(msg.BodyID)
	easy := append([]int64{}, body.EasyReplies...)
	mode := models.ReplyModeNormalOnly
	if len(easy) > 0 {
		mode = models.ReplyModeNormalAndEasy
	}

	stacks := make([]models.StackView, 0, len(attachments))
	for _, a := range attachments {
		stacks = append(stacks, models.StackView{ItemID: a.ItemID, Qty: a.Qty})
	}
	sort.Slice(stacks, func(i, j int) bool { return stacks[i].ItemID < stacks[j].ItemID })

	return &models.MessageView{
		ID:            msg.ID,
		SenderID:      msg.SenderID,
		SenderName:    sender,
		RecipientID:   msg.RecipientID,
		RecipientName: recipient,
		BodyID:        msg.BodyID,
		Subject:       body.Subject,
		Text:          body.Text,
		ReplyBodyID:   msg.ReplyBodyID,
		IsRead:        msg.IsRead,
		Attachments:   stacks,
		EasyReplies:   easy,
		ReplyMode:     mode,
		CreatedAt:     msg.CreatedAt,
	}
}

// SendMessage отправляет письмо другу; вложения физически уходят из инвентаря отправителя
func (s *Service) SendMessage(ctx context.Context, senderID, recipientID, bodyID int64, attachments []models.StackView) (*models.MessageView, error) {
	var view *models.MessageView
	err := s.run(ctx, "message_send", func(t *txn) error {
		msg, err := t.send(outgoing{
			senderID:    senderID,
			recipientID: recipientID,
			bodyID:      bodyID,
			attachments: toStacks(attachments),
		})
		if err != nil {
			return err
		}
		atts, err := t.repo.Attachments(msg.ID)
		if err != nil {
			return err
		}
		view, err = t.messageView(msg, atts)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Message sent",
		zap.Int64("message_id", view.ID),
		zap.Int64("sender_id", senderID),
		zap.Int64("recipient_id", recipientID),
		zap.Int("attachments", len(view.Attachments)))
	return view, nil
}

// EasyReply отвечает каталожным быстрым ответом на письмо с телом originalBody от recipientID
func (s *Service) EasyReply(ctx context.Context, userID, recipientID, originalBody, replyBody int64, attachments []models.StackView) (*models.MessageView, error) {
	if !s.catalog.IsEasyReply(originalBody, replyBody) {
		return nil, apperrors.Validation("body %d is not an easy reply to %d", replyBody, originalBody)
	}

	var view *models.MessageView
	err := s.run(ctx, "message_easy_reply", func(t *txn) error {
		received, err := t.repo.HasMessageFrom(userID, recipientID, originalBody)
		if err != nil {
			return err
		}
		if !received {
			return apperrors.NotFound("message with body %d from %d", originalBody, recipientID)
		}

		original := originalBody
		msg, err := t.send(outgoing{
			senderID:    userID,
			recipientID: recipientID,
			bodyID:      replyBody,
			replyBodyID: &original,
			attachments: toStacks(attachments),
		})
		if err != nil {
			return err
		}
		atts, err := t.repo.Attachments(msg.ID)
		if err != nil {
			return err
		}
		view, err = t.messageView(msg, atts)
		return err
	})
	return view, err
}

// ownMessage блокирует письмо получателя; чужое письмо считается отсутствующим
func (t *txn) ownMessage(userID, messageID int64) (*models.Message, error) {
	msg, err := t.repo.MessageForUpdate(messageID)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID != userID {
		return nil, apperrors.NotFound("message %d", messageID)
	}
	return msg, nil
}

// OpenMessage отмечает письмо прочитанным и возвращает его
func (s *Service) OpenMessage(ctx context.Context, userID, messageID int64) (*models.MessageView, error) {
	var view *models.MessageView
	err := s.run(ctx, "message_get", func(t *txn) error {
		msg, err := t.ownMessage(userID, messageID)
		if err != nil {
			return err
		}
		if !msg.IsRead {
			msg.IsRead = true
			if err := t.repo.SaveMessage(msg); err != nil {
				return err
			}
			t.out.touch(userID)
		}
		atts, err := t.repo.Attachments(msg.ID)
		if err != nil {
			return err
		}
		view, err = t.messageView(msg, atts)
		return err
	})
	return view, err
}

// detach переносит вложения письма в инвентарь получателя
func (t *txn) detach(msg *models.Message) ([]models.StackView, error) {
	atts, err := t.repo.Attachments(msg.ID)
	if err != nil {
		return nil, err
	}
	if len(atts) == 0 {
		return []models.StackView{}, nil
	}

	fromNetworker, err := t.isNetworker(msg.SenderID)
	if err != nil {
		return nil, err
	}
	toNetworker, err := t.isNetworker(msg.RecipientID)
	if err != nil {
		return nil, err
	}

	out := make([]models.StackView, 0, len(atts))
	for _, a := range atts {
		if err := t.add(msg.RecipientID, a.ItemID, a.Qty); err != nil {
			return nil, err
		}
		out = append(out, models.StackView{ItemID: a.ItemID, Qty: a.Qty})
		if fromNetworker && !toNetworker {
			t.out.obtained = append(t.out.obtained, itemObtained{
				networkerID: msg.SenderID,
				userID:      msg.RecipientID,
				itemID:      a.ItemID,
			})
		}
	}
	if err := t.repo.DeleteAttachments(msg.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// DetachMessage забирает вложения письма в инвентарь
func (s *Service) DetachMessage(ctx context.Context, userID, messageID int64) ([]models.StackView, error) {
	var out []models.StackView
	err := s.run(ctx, "message_detach", func(t *txn) error {
		msg, err := t.ownMessage(userID, messageID)
		if err != nil {
			return err
		}
		out, err = t.detach(msg)
		return err
	})
	return out, err
}

// DeleteMessage сначала забирает вложения, затем удаляет письмо
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID int64) ([]models.StackView, error) {
	var out []models.StackView
	err := s.run(ctx, "message_delete", func(t *txn) error {
		msg, err := t.ownMessage(userID, messageID)
		if err != nil {
			return err
		}
		out, err = t.detach(msg)
		if err != nil {
			return err
		}
		t.out.touch(userID)
		return t.repo.DeleteMessage(msg.ID)
	})
	return out, err
}

// ListInbox входящие по возрастанию ID
func (s *Service) ListInbox(ctx context.Context, userID int64) ([]models.MessageView, error) {
	if inbox, ok := s.cache.GetInbox(ctx, userID); ok {
		s.logger.Debug("Inbox retrieved from cache", zap.Int64("user_id", userID))
		return inbox, nil
	}

	epoch := s.epochs.load(userID)
	var out []models.MessageView
	err := s.read(ctx, "message_list", func(t *txn) error {
		messages, err := t.repo.Inbox(userID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(messages))
		users := []int64{userID}
		for _, msg := range messages {
			ids = append(ids, msg.ID)
			users = append(users, msg.SenderID)
		}
		atts, err := t.repo.AttachmentsFor(ids)
		if err != nil {
			return err
		}
		names, err := t.repo.Usernames(users)
		if err != nil {
			return err
		}

		out = make([]models.MessageView, 0, len(messages))
		for i := range messages {
			msg := &messages[i]
			view := buildMessageView(t.catalog, msg, atts[msg.ID], names[msg.SenderID], names[msg.RecipientID])
			out = append(out, *view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.storeView(ctx, userID, epoch, func() { s.cache.SetInbox(ctx, userID, out) })
	return out, nil
}

// ConsolidateInbox сливает письма с одинаковыми (отправитель, тело): вложения суммируются
// в самом старом письме, остальные удаляются. Возвращает число удаленных писем.
func (s *Service) ConsolidateInbox(ctx context.Context, userID int64) (int, error) {
	type key struct {
		sender int64
		body   int64
	}

	removed := 0
	err := s.run(ctx, "message_consolidate", func(t *txn) error {
		messages, err := t.repo.InboxForUpdate(userID)
		if err != nil {
			return err
		}

		survivors := make(map[key]*models.Message)
		for i := range messages {
			msg := &messages[i]
			k := key{sender: msg.SenderID, body: msg.BodyID}
			keep, ok := survivors[k]
			if !ok {
				survivors[k] = msg
				continue
			}

			atts, err := t.repo.Attachments(msg.ID)
			if err != nil {
				return err
			}
			for _, a := range atts {
				if err := t.repo.MergeAttachment(keep.ID, a.ItemID, a.Qty); err != nil {
					return err
				}
			}
			if err := t.repo.DeleteAttachments(msg.ID); err != nil {
				return err
			}
			if err := t.repo.DeleteMessage(msg.ID); err != nil {
				return err
			}
			if !msg.IsRead && keep.IsRead {
				keep.IsRead = false
				if err := t.repo.SaveMessage(keep); err != nil {
					return err
				}
			}
			removed++
		}
		if removed > 0 {
			t.out.touch(userID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("Inbox consolidated", zap.Int64("user_id", userID), zap.Int("removed", removed))
	}
	return removed, nil
}

func toStacks(views []models.StackView) []catalog.Stack {
	out := make([]catalog.Stack, 0, len(views))
	for _, v := range views {
		out = append(out, catalog.Stack{Item: v.ItemID, Qty: v.Qty})
	}
	return out
}
