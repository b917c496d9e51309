package legacy

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
)

// xorKey ключ обфускации конверта, 23 байта
var xorKey = []byte("0e0 t00e0-0 i etiaonmld")

// Типы запросов старого клиента (полный список)
const (
	RequestBlueprintUse                    = "BlueprintUse"
	RequestFriendProcessBlocking           = "FriendProcessBlocking"
	RequestFriendProcessInvitation         = "FriendProcessInvitation"
	RequestFriendRemoveMember              = "FriendRemoveMember"
	RequestFriendSendInvitation            = "FriendSendInvitation"
	RequestGetModuleBgs                    = "getModuleBgs"
	RequestInventoryModuleGet              = "InventoryModuleGet"
	RequestPageGetNew                      = "PageGetNew"
	RequestPageSaveLayout                  = "PageSaveLayout"
	RequestPageSaveOptions                 = "PageSaveOptions"
	RequestMessageDelete                   = "MessageDelete"
	RequestMessageDetach                   = "MessageDetach"
	RequestMessageEasyReply                = "MessageEasyReply"
	RequestMessageEasyReplyWithAttachments = "MessageEasyReplyWithAttachments"
	RequestMessageGet                      = "MessageGet"
	RequestMessageList                     = "MessageList"
	RequestMessageSend                     = "MessageSend"
	RequestMessageSendWithAttachment       = "MessageSendWithAttachment"
	RequestModuleCollectWinnings           = "ModuleCollectWinnings"
	RequestModuleDetails                   = "ModuleDetails"
	RequestModuleExecute                   = "ModuleExecute"
	RequestModuleHarvest                   = "ModuleHarvest"
	RequestModuleSaveSettings              = "ModuleSaveSettings"
	RequestModuleSetup                     = "ModuleSetup"
	RequestModuleVote                      = "ModuleVote"
	RequestModuleTeardown                  = "ModuleTeardown"
	RequestUserGetMyAvatar                 = "UserGetMyAvatar"
	RequestUserSaveMyAvatar                = "UserSaveMyAvatar"
	RequestUserSaveMyStatements            = "UserSaveMyStatements"
)

// RequestTypes все известные типы запросов
var RequestTypes = []string{
	RequestBlueprintUse, RequestFriendProcessBlocking, RequestFriendProcessInvitation,
	RequestFriendRemoveMember, RequestFriendSendInvitation, RequestGetModuleBgs,
	RequestInventoryModuleGet, RequestPageGetNew, RequestPageSaveLayout, RequestPageSaveOptions,
	RequestMessageDelete, RequestMessageDetach, RequestMessageEasyReply,
	RequestMessageEasyReplyWithAttachments, RequestMessageGet, RequestMessageList,
	RequestMessageSend, RequestMessageSendWithAttachment, RequestModuleCollectWinnings,
	RequestModuleDetails, RequestModuleExecute, RequestModuleHarvest, RequestModuleSaveSettings,
	RequestModuleSetup, RequestModuleVote, RequestModuleTeardown, RequestUserGetMyAvatar,
	RequestUserSaveMyAvatar, RequestUserSaveMyStatements,
}

var knownRequestTypes = func() map[string]bool {
	m := make(map[string]bool, len(RequestTypes))
	for _, t := range RequestTypes {
		m[t] = true
	}
	return m
}()

// IsKnownRequestType проверяет тип запроса по полному списку
func IsKnownRequestType(t string) bool {
	return knownRequestTypes[t]
}

// Request корень <request type="T">
type Request struct {
	XMLName xml.Name `xml:"request"`
	Type    string   `xml:"type,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// Response корень <response type="T"> с необязательным идентификатором ошибки
type Response struct {
	XMLName xml.Name `xml:"response"`
	Type    string   `xml:"type,attr"`
	Error   *int64   `xml:"error,omitempty"`
	Inner   []byte   `xml:",innerxml"`
}

// XOR применяет ключ к данным; операция обратима
func XOR(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ xorKey[i%len(xorKey)]
	}
	return out
}

// DecodeRequest раскрывает base64 и XOR и разбирает корень запроса
func DecodeRequest(payload string) (*Request, error) {
	cipher, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("envelope base64: %w", err)
	}

	var req Request
	if err := xml.Unmarshal(XOR(cipher), &req); err != nil {
		return nil, fmt.Errorf("envelope xml: %w", err)
	}
	if !IsKnownRequestType(req.Type) {
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}

	return &req, nil
}

// EncodeRequest обратная операция к DecodeRequest
func EncodeRequest(req Request) (string, error) {
	raw, err := xml.Marshal(req)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(XOR(raw)), nil
}

// EncodeResponse сериализует ответ и оборачивает его в конверт
func EncodeResponse(resp Response) (string, error) {
	raw, err := xml.Marshal(resp)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(XOR(raw)), nil
}

// DecodeResponse раскрывает конверт ответа
func DecodeResponse(payload string) (*Response, error) {
	cipher, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("envelope base64: %w", err)
	}
	var resp Response
	if err := xml.Unmarshal(XOR(cipher), &resp); err != nil {
		return nil, fmt.Errorf("envelope xml: %w", err)
	}
	return &resp, nil
}
