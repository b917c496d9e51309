package grpc

import (
	"context"

	"MLNCoreService/internal/models"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/legacy"
	"MLNCoreService/pkg/server"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GameService операции ядра, которые вызывает граница
type GameService interface {
	UseBlueprint(ctx context.Context, userID, blueprintItem int64) (*service.BlueprintResult, error)

	SendInvite(ctx context.Context, actorID int64, username string) (*models.FriendshipView, error)
	RespondInvite(ctx context.Context, actorID, requesterID int64, accept bool) (*models.FriendshipView, error)
	SetBlocked(ctx context.Context, actorID, otherID int64, block bool) (*models.FriendshipView, error)
	RemoveFriend(ctx context.Context, actorID, otherID int64) (*models.FriendshipView, error)

	GetPage(ctx context.Context, viewerID, ownerID int64) (*models.PageView, error)
	SaveLayout(ctx context.Context, ownerID int64, entries []service.LayoutEntry) ([]models.ModuleView, error)
	SavePageOptions(ctx context.Context, userID int64, opts service.PageOptions) error
	ListInventoryModules(ctx context.Context, userID int64) ([]models.StackView, error)
	ListModuleBackgrounds(ctx context.Context, userID int64) ([]models.StackView, error)

	SendMessage(ctx context.Context, senderID, recipientID, bodyID int64, attachments []models.StackView) (*models.MessageView, error)
	EasyReply(ctx context.Context, userID, recipientID, originalBody, replyBody int64, attachments []models.StackView) (*models.MessageView, error)
	OpenMessage(ctx context.Context, userID, messageID int64) (*models.MessageView, error)
	DetachMessage(ctx context.Context, userID, messageID int64) ([]models.StackView, error)
	DeleteMessage(ctx context.Context, userID, messageID int64) ([]models.StackView, error)
	ListInbox(ctx context.Context, userID int64) ([]models.MessageView, error)

	ClickModule(ctx context.Context, clickerID, moduleID int64) (*service.ClickResult, error)
	CollectWinnings(ctx context.Context, clickerID, moduleID int64) (*models.StackView, error)
	Harvest(ctx context.Context, ownerID, moduleID int64) (*models.StackView, error)
	SetupModule(ctx context.Context, ownerID, moduleID int64) (*models.ModuleView, error)
	TeardownModule(ctx context.Context, ownerID, moduleID int64) (*models.ModuleView, error)
	SaveSettings(ctx context.Context, ownerID, moduleID int64, settings models.ModuleSettings) (*models.ModuleDetailsView, error)
	ModuleDetails(ctx context.Context, viewerID, moduleID int64) (*models.ModuleDetailsView, error)

	GetAvatar(ctx context.Context, userID int64) (string, error)
	SaveAvatar(ctx context.Context, userID int64, avatar string) error
	SaveStatements(ctx context.Context, userID int64, pairs []models.AboutMeView) error
}

// GameHandler обрабатывает вызовы mln.core.v1.GameService
type GameHandler struct {
	core   GameService
	logger *zap.Logger
}

// NewGameHandler создает новый экземпляр GameHandler
func NewGameHandler(core GameService, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		core:   core,
		logger: logger,
	}
}

// Empty ответ операций без результата
type Empty struct{}

// ItemsResponse список стопок предметов
type ItemsResponse struct {
	Items []models.StackView `json:"items"`
}

// BlueprintRequest чертеж, по которому строится предмет
type BlueprintRequest struct {
	BlueprintID int64 `json:"blueprint_id"`
}

// UsernameRequest адресат приглашения по имени
type UsernameRequest struct {
	Username string `json:"username"`
}

// MemberRequest друг, которого убирают из списка
type MemberRequest struct {
	UserID legacy.ID `json:"user_id"`
}

// BlockingRequest блокировка или разблокировка пользователя
type BlockingRequest struct {
	UserID legacy.ID `json:"user_id"`
	Block  bool      `json:"block"`
}

// InvitationRequest ответ на приглашение от user_id
type InvitationRequest struct {
	UserID legacy.ID `json:"user_id"`
	Accept bool      `json:"accept"`
}

// PageRequest страница пользователя; без user_id возвращается своя
type PageRequest struct {
	UserID *legacy.ID `json:"user_id,omitempty"`
}

// LayoutItem модуль на странице: module_id для уже размещенного, item_id для нового
type LayoutItem struct {
	ModuleID *legacy.ID `json:"module_id,omitempty"`
	ItemID   int64      `json:"item_id"`
	X        int        `json:"x"`
	Y        int        `json:"y"`
}

// LayoutRequest полный список модулей страницы
type LayoutRequest struct {
	Modules []LayoutItem `json:"modules"`
}

// LayoutResponse модули страницы после сохранения
type LayoutResponse struct {
	Modules []models.ModuleView `json:"modules"`
}

// PageOptionsRequest оформление страницы
type PageOptionsRequest struct {
	SkinID      *int64 `json:"skin_id,omitempty"`
	Color       int    `json:"color"`
	ColumnColor int    `json:"column_color"`
}

// MessageRequest письмо из входящих
type MessageRequest struct {
	MessageID legacy.ID `json:"message_id"`
}

// SendRequest письмо другу с необязательными вложениями
type SendRequest struct {
	RecipientID legacy.ID          `json:"recipient_id"`
	BodyID      int64              `json:"body_id"`
	Attachments []models.StackView `json:"attachments,omitempty"`
}

// EasyReplyRequest быстрый ответ на письмо
type EasyReplyRequest struct {
	RecipientID  legacy.ID          `json:"recipient_id"`
	OriginalBody int64              `json:"original_body_id"`
	ReplyBody    int64              `json:"reply_body_id"`
	Attachments  []models.StackView `json:"attachments,omitempty"`
}

// InboxResponse входящие по возрастанию ID
type InboxResponse struct {
	Messages []models.MessageView `json:"messages"`
}

// ModuleRequest модуль, над которым выполняется действие
type ModuleRequest struct {
	ModuleID legacy.ID `json:"module_id"`
}

// SettingsRequest настройки модуля в формате его типа
type SettingsRequest struct {
	ModuleID legacy.ID             `json:"module_id"`
	Settings models.ModuleSettings `json:"settings"`
}

// AvatarMessage строка аватара
type AvatarMessage struct {
	Avatar string `json:"avatar"`
}

// StatementsRequest ответы анкеты
type StatementsRequest struct {
	Statements []models.AboutMeView `json:"statements"`
}

// actor достает ID действующего пользователя из метаданных (десятичная или UUID-форма)
func (h *GameHandler) actor(ctx context.Context) (int64, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(server.MetadataActorID)
	if len(values) == 0 || values[0] == "" {
		return 0, status.Error(codes.Unauthenticated, "missing "+server.MetadataActorID)
	}
	id, err := legacy.ParseID(values[0])
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "malformed actor id: %v", err)
	}
	return id, nil
}

// BlueprintUse строит предмет по чертежу
func (h *GameHandler) BlueprintUse(ctx context.Context, actor int64, req *BlueprintRequest) (*service.BlueprintResult, error) {
	return h.core.UseBlueprint(ctx, actor, req.BlueprintID)
}

// FriendProcessBlocking блокирует или разблокирует пользователя
func (h *GameHandler) FriendProcessBlocking(ctx context.Context, actor int64, req *BlockingRequest) (*models.FriendshipView, error) {
	return h.core.SetBlocked(ctx, actor, req.UserID.Int64(), req.Block)
}

// FriendProcessInvitation принимает или отклоняет приглашение
func (h *GameHandler) FriendProcessInvitation(ctx context.Context, actor int64, req *InvitationRequest) (*models.FriendshipView, error) {
	return h.core.RespondInvite(ctx, actor, req.UserID.Int64(), req.Accept)
}

// FriendRemoveMember удаляет друга
func (h *GameHandler) FriendRemoveMember(ctx context.Context, actor int64, req *MemberRequest) (*models.FriendshipView, error) {
	return h.core.RemoveFriend(ctx, actor, req.UserID.Int64())
}

// FriendSendInvitation приглашает в друзья по имени
func (h *GameHandler) FriendSendInvitation(ctx context.Context, actor int64, req *UsernameRequest) (*models.FriendshipView, error) {
	return h.core.SendInvite(ctx, actor, req.Username)
}

// GetModuleBgs скины для фона модулей
func (h *GameHandler) GetModuleBgs(ctx context.Context, actor int64, _ *Empty) (*ItemsResponse, error) {
	items, err := h.core.ListModuleBackgrounds(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &ItemsResponse{Items: items}, nil
}

// InventoryModuleGet модули в инвентаре
func (h *GameHandler) InventoryModuleGet(ctx context.Context, actor int64, _ *Empty) (*ItemsResponse, error) {
	items, err := h.core.ListInventoryModules(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &ItemsResponse{Items: items}, nil
}

// PageGetNew страница пользователя
func (h *GameHandler) PageGetNew(ctx context.Context, actor int64, req *PageRequest) (*models.PageView, error) {
	owner := actor
	if req.UserID != nil {
		owner = req.UserID.Int64()
	}
	return h.core.GetPage(ctx, actor, owner)
}

// PageSaveLayout сохраняет расстановку модулей
func (h *GameHandler) PageSaveLayout(ctx context.Context, actor int64, req *LayoutRequest) (*LayoutResponse, error) {
	entries := make([]service.LayoutEntry, 0, len(req.Modules))
	for _, m := range req.Modules {
		e := service.LayoutEntry{ItemID: m.ItemID, X: m.X, Y: m.Y}
		if m.ModuleID != nil {
			id := m.ModuleID.Int64()
			e.ModuleID = &id
		}
		entries = append(entries, e)
	}
	modules, err := h.core.SaveLayout(ctx, actor, entries)
	if err != nil {
		return nil, err
	}
	return &LayoutResponse{Modules: modules}, nil
}

// PageSaveOptions сохраняет оформление страницы
func (h *GameHandler) PageSaveOptions(ctx context.Context, actor int64, req *PageOptionsRequest) (*Empty, error) {
	err := h.core.SavePageOptions(ctx, actor, service.PageOptions{
		SkinID:      req.SkinID,
		Color:       req.Color,
		ColumnColor: req.ColumnColor,
	})
	return &Empty{}, err
}

// MessageDelete удаляет письмо, вложения переходят получателю
func (h *GameHandler) MessageDelete(ctx context.Context, actor int64, req *MessageRequest) (*ItemsResponse, error) {
	items, err := h.core.DeleteMessage(ctx, actor, req.MessageID.Int64())
	if err != nil {
		return nil, err
	}
	return &ItemsResponse{Items: items}, nil
}

// MessageDetach забирает вложения письма
func (h *GameHandler) MessageDetach(ctx context.Context, actor int64, req *MessageRequest) (*ItemsResponse, error) {
	items, err := h.core.DetachMessage(ctx, actor, req.MessageID.Int64())
	if err != nil {
		return nil, err
	}
	return &ItemsResponse{Items: items}, nil
}

// MessageEasyReply и MessageEasyReplyWithAttachments различаются только наличием вложений
func (h *GameHandler) MessageEasyReply(ctx context.Context, actor int64, req *EasyReplyRequest) (*models.MessageView, error) {
	return h.core.EasyReply(ctx, actor, req.RecipientID.Int64(), req.OriginalBody, req.ReplyBody, nil)
}

// MessageEasyReplyWithAttachments быстрый ответ с вложениями
func (h *GameHandler) MessageEasyReplyWithAttachments(ctx context.Context, actor int64, req *EasyReplyRequest) (*models.MessageView, error) {
	return h.core.EasyReply(ctx, actor, req.RecipientID.Int64(), req.OriginalBody, req.ReplyBody, req.Attachments)
}

// MessageGet открывает письмо
func (h *GameHandler) MessageGet(ctx context.Context, actor int64, req *MessageRequest) (*models.MessageView, error) {
	return h.core.OpenMessage(ctx, actor, req.MessageID.Int64())
}

// MessageList входящие
func (h *GameHandler) MessageList(ctx context.Context, actor int64, _ *Empty) (*InboxResponse, error) {
	inbox, err := h.core.ListInbox(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &InboxResponse{Messages: inbox}, nil
}

// MessageSend письмо без вложений
func (h *GameHandler) MessageSend(ctx context.Context, actor int64, req *SendRequest) (*models.MessageView, error) {
	return h.core.SendMessage(ctx, actor, req.RecipientID.Int64(), req.BodyID, nil)
}

// MessageSendWithAttachment письмо с вложениями
func (h *GameHandler) MessageSendWithAttachment(ctx context.Context, actor int64, req *SendRequest) (*models.MessageView, error) {
	return h.core.SendMessage(ctx, actor, req.RecipientID.Int64(), req.BodyID, req.Attachments)
}

// ModuleCollectWinnings забирает выигрыш аркады
func (h *GameHandler) ModuleCollectWinnings(ctx context.Context, actor int64, req *ModuleRequest) (*models.StackView, error) {
	return h.core.CollectWinnings(ctx, actor, req.ModuleID.Int64())
}

// ModuleDetails модуль с настройками
func (h *GameHandler) ModuleDetails(ctx context.Context, actor int64, req *ModuleRequest) (*models.ModuleDetailsView, error) {
	return h.core.ModuleDetails(ctx, actor, req.ModuleID.Int64())
}

// ModuleExecute и ModuleVote оба клик; стоимость запуска задает каталог
func (h *GameHandler) ModuleExecute(ctx context.Context, actor int64, req *ModuleRequest) (*service.ClickResult, error) {
	return h.core.ClickModule(ctx, actor, req.ModuleID.Int64())
}

// ModuleVote клик по модулю
func (h *GameHandler) ModuleVote(ctx context.Context, actor int64, req *ModuleRequest) (*service.ClickResult, error) {
	return h.core.ClickModule(ctx, actor, req.ModuleID.Int64())
}

// ModuleHarvest собирает урожай модуля
func (h *GameHandler) ModuleHarvest(ctx context.Context, actor int64, req *ModuleRequest) (*models.StackView, error) {
	return h.core.Harvest(ctx, actor, req.ModuleID.Int64())
}

// ModuleSaveSettings сохраняет настройки модуля
func (h *GameHandler) ModuleSaveSettings(ctx context.Context, actor int64, req *SettingsRequest) (*models.ModuleDetailsView, error) {
	return h.core.SaveSettings(ctx, actor, req.ModuleID.Int64(), req.Settings)
}

// ModuleSetup запускает модуль
func (h *GameHandler) ModuleSetup(ctx context.Context, actor int64, req *ModuleRequest) (*models.ModuleView, error) {
	return h.core.SetupModule(ctx, actor, req.ModuleID.Int64())
}

// ModuleTeardown останавливает модуль
func (h *GameHandler) ModuleTeardown(ctx context.Context, actor int64, req *ModuleRequest) (*models.ModuleView, error) {
	return h.core.TeardownModule(ctx, actor, req.ModuleID.Int64())
}

// UserGetMyAvatar свой аватар
func (h *GameHandler) UserGetMyAvatar(ctx context.Context, actor int64, _ *Empty) (*AvatarMessage, error) {
	avatar, err := h.core.GetAvatar(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &AvatarMessage{Avatar: avatar}, nil
}

// UserSaveMyAvatar сохраняет аватар
func (h *GameHandler) UserSaveMyAvatar(ctx context.Context, actor int64, req *AvatarMessage) (*Empty, error) {
	return &Empty{}, h.core.SaveAvatar(ctx, actor, req.Avatar)
}

// UserSaveMyStatements сохраняет анкету
func (h *GameHandler) UserSaveMyStatements(ctx context.Context, actor int64, req *StatementsRequest) (*Empty, error) {
	return &Empty{}, h.core.SaveStatements(ctx, actor, req.Statements)
}
