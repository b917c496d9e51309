package grpc

import (
	"context"
	"encoding/json"

	"MLNCoreService/pkg/legacy"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// ServiceName полное имя gRPC сервиса
const ServiceName = "mln.core.v1.GameService"

// CodecName подтип content-type, с которым клиенты вызывают сервис
const CodecName = "json"

// jsonCodec кодек сообщений сервиса. Сгенерированных protobuf-сообщений нет,
// запросы и ответы описаны структурами Go.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type gameServer interface {
	actor(ctx context.Context) (int64, error)
}

// unary строит описание метода: декодирует запрос, определяет пользователя,
// вызывает операцию и переводит ошибку ядра в статус gRPC
func unary[Req, Resp any](name string, call func(h *GameHandler, ctx context.Context, actor int64, req *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "malformed %s request: %v", name, err)
			}
			h := srv.(*GameHandler)
			handle := func(ctx context.Context, req any) (any, error) {
				actor, err := h.actor(ctx)
				if err != nil {
					return nil, err
				}
				resp, err := call(h, ctx, actor, req.(*Req))
				if err != nil {
					return nil, h.toStatus(ctx, name, err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return handle(ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, req, info, handle)
		},
	}
}

// Имена методов совпадают с типами запросов старого клиента
var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*gameServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(legacy.RequestBlueprintUse, (*GameHandler).BlueprintUse),
		unary(legacy.RequestFriendProcessBlocking, (*GameHandler).FriendProcessBlocking),
		unary(legacy.RequestFriendProcessInvitation, (*GameHandler).FriendProcessInvitation),
		unary(legacy.RequestFriendRemoveMember, (*GameHandler).FriendRemoveMember),
		unary(legacy.RequestFriendSendInvitation, (*GameHandler).FriendSendInvitation),
		unary(legacy.RequestGetModuleBgs, (*GameHandler).GetModuleBgs),
		unary(legacy.RequestInventoryModuleGet, (*GameHandler).InventoryModuleGet),
		unary(legacy.RequestPageGetNew, (*GameHandler).PageGetNew),
		unary(legacy.RequestPageSaveLayout, (*GameHandler).PageSaveLayout),
		unary(legacy.RequestPageSaveOptions, (*GameHandler).PageSaveOptions),
		unary(legacy.RequestMessageDelete, (*GameHandler).MessageDelete),
		unary(legacy.RequestMessageDetach, (*GameHandler).MessageDetach),
		unary(legacy.RequestMessageEasyReply, (*GameHandler).MessageEasyReply),
		unary(legacy.RequestMessageEasyReplyWithAttachments, (*GameHandler).MessageEasyReplyWithAttachments),
		unary(legacy.RequestMessageGet, (*GameHandler).MessageGet),
		unary(legacy.RequestMessageList, (*GameHandler).MessageList),
		unary(legacy.RequestMessageSend, (*GameHandler).MessageSend),
		unary(legacy.RequestMessageSendWithAttachment, (*GameHandler).MessageSendWithAttachment),
		unary(legacy.RequestModuleCollectWinnings, (*GameHandler).ModuleCollectWinnings),
		unary(legacy.RequestModuleDetails, (*GameHandler).ModuleDetails),
		unary(legacy.RequestModuleExecute, (*GameHandler).ModuleExecute),
		unary(legacy.RequestModuleHarvest, (*GameHandler).ModuleHarvest),
		unary(legacy.RequestModuleSaveSettings, (*GameHandler).ModuleSaveSettings),
		unary(legacy.RequestModuleSetup, (*GameHandler).ModuleSetup),
		unary(legacy.RequestModuleVote, (*GameHandler).ModuleVote),
		unary(legacy.RequestModuleTeardown, (*GameHandler).ModuleTeardown),
		unary(legacy.RequestUserGetMyAvatar, (*GameHandler).UserGetMyAvatar),
		unary(legacy.RequestUserSaveMyAvatar, (*GameHandler).UserSaveMyAvatar),
		unary(legacy.RequestUserSaveMyStatements, (*GameHandler).UserSaveMyStatements),
	},
	Streams: []grpc.StreamDesc{},
}

// Register регистрирует GameService на gRPC сервере
func Register(s grpc.ServiceRegistrar, h *GameHandler) {
	s.RegisterService(&gameServiceDesc, h)
}
