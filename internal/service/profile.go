package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/clock"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"
)

// Анкета "обо мне" состоит ровно из шести пар
const aboutMeSize = 6

// Максимальный индекс цвета колонок страницы
const maxColumnColor = 4

// regenerateVotes начисляет голоса за прошедшее время: max_votes штук в сутки.
// Неучтенный остаток времени сохраняется; при упоре в максимум время обновления становится now.
func regenerateVotes(p *models.Profile, now time.Time) {
	maxVotes := p.MaxVotes()
	if p.AvailableVotes >= maxVotes {
		p.AvailableVotes = maxVotes
		p.LastVoteUpdateTime = now
		return
	}

	elapsed := now.Sub(p.LastVoteUpdateTime)
	if elapsed <= 0 {
		return
	}
	interval := clock.Day / time.Duration(maxVotes)
	gained := int(elapsed / interval)
	if gained == 0 {
		return
	}

	if p.AvailableVotes+gained >= maxVotes {
		p.AvailableVotes = maxVotes
		p.LastVoteUpdateTime = now
		return
	}
	p.AvailableVotes += gained
	p.LastVoteUpdateTime = p.LastVoteUpdateTime.Add(time.Duration(gained) * interval)
}

// Длины списка D в аватаре для разных H
var avatarPartCounts = map[string]int{
	"0": 14,
	"1": 5,
}

// ValidateAvatar проверяет токен аватара: "png" либо H#D или H#D#n.
// Люди могут использовать только H=0.
func ValidateAvatar(avatar string, networker bool) error {
	if avatar == "png" {
		return nil
	}

	parts := strings.Split(avatar, "#")
	if len(parts) != 2 && len(parts) != 3 {
		return apperrors.Validation("malformed avatar %q", avatar)
	}
	want, ok := avatarPartCounts[parts[0]]
	if !ok {
		return apperrors.Validation("unknown avatar kind %q", parts[0])
	}
	if parts[0] != "0" && !networker {
		return apperrors.Validation("avatar kind %q is reserved for networkers", parts[0])
	}

	values := strings.Split(parts[1], ",")
	if len(values) != want {
		return apperrors.Validation("avatar kind %s needs %d parts, got %d", parts[0], want, len(values))
	}
	for _, v := range values {
		if _, err := strconv.Atoi(v); err != nil {
			return apperrors.Validation("avatar part %q is not a number", v)
		}
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return apperrors.Validation("avatar suffix %q is not a number", parts[2])
		}
	}
	return nil
}

// RefreshVotes регенерирует голоса и возвращает профиль
func (s *Service) RefreshVotes(ctx context.Context, userID int64) (*models.Profile, error) {
	var profile *models.Profile
	err := s.run(ctx, "profile_refresh_votes", func(t *txn) error {
		p, err := t.lockProfile(userID)
		if err != nil {
			return err
		}
		regenerateVotes(p, t.now)
		profile = p
		return t.repo.SaveProfile(p)
	})
	return profile, err
}

// GetAvatar возвращает аватар пользователя
func (s *Service) GetAvatar(ctx context.Context, userID int64) (string, error) {
	var avatar string
	err := s.read(ctx, "user_get_avatar", func(t *txn) error {
		p, err := t.repo.Profile(userID)
		if err != nil {
			return err
		}
		avatar = p.Avatar
		return nil
	})
	return avatar, err
}

// SaveAvatar сохраняет аватар пользователя
func (s *Service) SaveAvatar(ctx context.Context, userID int64, avatar string) error {
	return s.run(ctx, "user_save_avatar", func(t *txn) error {
		p, err := t.lockProfile(userID)
		if err != nil {
			return err
		}
		if err := ValidateAvatar(avatar, p.IsNetworker); err != nil {
			return err
		}
		p.Avatar = avatar
		t.out.touch(userID)
		return t.repo.SaveProfile(p)
	})
}

// PageOptions оформление страницы
type PageOptions struct {
	SkinID      *int64
	Color       int
	ColumnColor int
}

// SavePageOptions сохраняет оформление страницы. Скин должен лежать в инвентаре владельца.
func (s *Service) SavePageOptions(ctx context.Context, userID int64, opts PageOptions) error {
	if opts.ColumnColor < 0 || opts.ColumnColor > maxColumnColor {
		return apperrors.Validation("column color %d out of range", opts.ColumnColor)
	}
	if opts.Color < 0 {
		return apperrors.Validation("color %d out of range", opts.Color)
	}

	return s.run(ctx, "page_save_options", func(t *txn) error {
		p, err := t.lockProfile(userID)
		if err != nil {
			return err
		}
		if opts.SkinID != nil {
			if !t.catalog.IsType(*opts.SkinID, catalog.ItemTypeSkin) {
				return apperrors.Validation("item %d is not a skin", *opts.SkinID)
			}
			ok, err := t.has(userID, *opts.SkinID, 1)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrInsufficientItems
			}
		}
		p.SkinID = opts.SkinID
		p.Color = opts.Color
		p.ColumnColor = opts.ColumnColor
		t.out.touch(userID)
		return t.repo.SaveProfile(p)
	})
}

// SaveStatements сохраняет анкету: шесть разных вопросов, все обязательные на месте,
// каждый ответ принадлежит своему вопросу
func (s *Service) SaveStatements(ctx context.Context, userID int64, pairs []models.AboutMeView) error {
	if err := s.validateStatements(pairs); err != nil {
		return err
	}

	answers := make([]models.AboutMeAnswer, 0, len(pairs))
	for i, pair := range pairs {
		answers = append(answers, models.AboutMeAnswer{
			UserID:     userID,
			Position:   i,
			QuestionID: pair.QuestionID,
			AnswerID:   pair.AnswerID,
		})
	}

	return s.run(ctx, "user_save_statements", func(t *txn) error {
		if _, err := t.lockProfile(userID); err != nil {
			return err
		}
		t.out.touch(userID)
		return t.repo.ReplaceAboutMe(userID, answers)
	})
}

func (s *Service) validateStatements(pairs []models.AboutMeView) error {
	if len(pairs) != aboutMeSize {
		return apperrors.Validation("about me needs %d answers, got %d", aboutMeSize, len(pairs))
	}
	seen := make(map[int64]bool, len(pairs))
	for _, pair := range pairs {
		if _, ok := s.catalog.Question(pair.QuestionID); !ok {
			return apperrors.Validation("unknown question %d", pair.QuestionID)
		}
		if seen[pair.QuestionID] {
			return apperrors.Validation("question %d repeated", pair.QuestionID)
		}
		seen[pair.QuestionID] = true
		if q, ok := s.catalog.AnswerQuestion(pair.AnswerID); !ok || q != pair.QuestionID {
			return apperrors.Validation("answer %d does not belong to question %d", pair.AnswerID, pair.QuestionID)
		}
	}
	for _, q := range s.catalog.MandatoryQuestions() {
		if !seen[q] {
			return apperrors.Validation("mandatory question %d missing", q)
		}
	}
	return nil
}
