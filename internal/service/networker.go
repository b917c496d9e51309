package service

import (
	"context"
	"slices"

	"MLNCoreService/internal/catalog"

	"go.uber.org/zap"
)

// matchesMail проверяет триггеры автоответа по телу и вложениям входящего письма
func matchesMail(r catalog.NetworkerReply, networker string, in inboundMail) bool {
	if r.Networker != "" && r.Networker != networker {
		return false
	}
	if r.TriggerBody != nil && *r.TriggerBody == in.bodyID {
		return true
	}
	return r.TriggerAttachment != nil && slices.Contains(in.items, *r.TriggerAttachment)
}

// matchesItemObtained проверяет триггер получения предмета. Ответ должен быть привязан
// к networker-у, от которого пришел предмет.
func matchesItemObtained(r catalog.NetworkerReply, networker string, itemID int64) bool {
	return r.Networker == networker && r.TriggerItemObtained != nil && *r.TriggerItemObtained == itemID
}

// replyToMail срабатывают все подходящие автоответы на письмо networker-у.
// Ошибки только логируются и не влияют на действие пользователя.
func (s *Service) replyToMail(ctx context.Context, in inboundMail) {
	s.fireReplies(ctx, "networker_reply_mail", in.networkerID, in.senderID, func(r catalog.NetworkerReply, name string) bool {
		return matchesMail(r, name, in)
	})
}

// replyToItemObtained автоответы на получение предмета из письма networker-а
func (s *Service) replyToItemObtained(ctx context.Context, ob itemObtained) {
	s.fireReplies(ctx, "networker_reply_item", ob.networkerID, ob.userID, func(r catalog.NetworkerReply, name string) bool {
		return matchesItemObtained(r, name, ob.itemID)
	})
}

func (s *Service) fireReplies(ctx context.Context, operation string, networkerID, userID int64, match func(catalog.NetworkerReply, string) bool) {
	replies := s.catalog.Replies()
	if len(replies) == 0 {
		return
	}

	err := s.run(ctx, operation, func(t *txn) error {
		name, err := t.username(networkerID)
		if err != nil {
			return err
		}
		for _, r := range replies {
			if !match(r, name) {
				continue
			}
			err := t.savepoint(func(t *txn) error {
				_, err := t.sendTemplate(networkerID, userID, r.Template)
				return err
			})
			if err != nil {
				s.logger.Warn("Networker reply failed",
					zap.String("networker", name),
					zap.Int64("user_id", userID),
					zap.Int64("template", r.Template),
					zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Networker replies skipped",
			zap.Int64("networker_id", networkerID),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}
