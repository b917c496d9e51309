package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/internal/repository/postgres"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/apperrors"
	"MLNCoreService/pkg/database"
	"MLNCoreService/pkg/legacy"
	"MLNCoreService/pkg/resilience"
	"MLNCoreService/pkg/server"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testServer struct {
	svc  *service.Service
	conn *grpc.ClientConn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()
	db, err := database.NewSQLiteDB(name, logger)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	cat, err := catalog.Load("../../../config/catalog.yaml")
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	svc := service.NewService(postgres.NewStore(db, logger), cat, logger)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewGameHandler(svc, logger), logger, 0)
	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testServer{svc: svc, conn: conn}
}

func (ts *testServer) call(actor string, method string, req, resp any, opts ...grpc.CallOption) error {
	ctx := context.Background()
	if actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, server.MetadataActorID, actor)
	}
	return ts.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, opts...)
}

func (ts *testServer) user(t *testing.T, name string) int64 {
	t.Helper()
	u, err := ts.svc.CreateUser(context.Background(), name, service.NewUser{})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u.ID
}

func TestGameService_LayoutAndPage(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.user(t, "alice")
	bob := ts.user(t, "bob")
	if err := ts.svc.AddItems(context.Background(), alice, 3001, 1); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}

	var layout LayoutResponse
	err := ts.call(fmt.Sprint(alice), legacy.RequestPageSaveLayout,
		&LayoutRequest{Modules: []LayoutItem{{ItemID: 3001, X: 1, Y: 2}}}, &layout)
	if err != nil {
		t.Fatalf("PageSaveLayout error = %v", err)
	}
	if len(layout.Modules) != 1 || layout.Modules[0].ItemID != 3001 {
		t.Fatalf("layout = %+v", layout.Modules)
	}

	// Идентификатор пользователя в UUID-форме старого клиента
	aliceUUID, err := legacy.FormatUUID(alice)
	if err != nil {
		t.Fatalf("FormatUUID() error = %v", err)
	}
	bobUUID, err := legacy.FormatUUID(bob)
	if err != nil {
		t.Fatalf("FormatUUID() error = %v", err)
	}

	var page models.PageView
	err = ts.call(bobUUID, legacy.RequestPageGetNew,
		map[string]any{"user_id": aliceUUID}, &page)
	if err != nil {
		t.Fatalf("PageGetNew error = %v", err)
	}
	if page.UserID != alice || page.Username != "alice" {
		t.Errorf("page = %+v", page)
	}
	if len(page.Modules) != 1 || page.Modules[0].ID != layout.Modules[0].ID {
		t.Errorf("page modules = %+v", page.Modules)
	}

	var own models.PageView
	if err := ts.call(fmt.Sprint(bob), legacy.RequestPageGetNew, &Empty{}, &own); err != nil {
		t.Fatalf("PageGetNew(own) error = %v", err)
	}
	if own.UserID != bob {
		t.Errorf("own page user = %d, want %d", own.UserID, bob)
	}
}

func TestGameService_ErrorTrailers(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.user(t, "alice")

	var trailer metadata.MD
	err := ts.call(fmt.Sprint(alice), legacy.RequestFriendSendInvitation,
		&UsernameRequest{Username: "nobody"}, &models.FriendshipView{}, grpc.Trailer(&trailer))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition (err %v)", status.Code(err), err)
	}
	if got := trailer.Get(TrailerErrorID); len(got) != 1 || got[0] != "52256" {
		t.Errorf("%s = %v", TrailerErrorID, got)
	}

	envelope := trailer.Get(TrailerLegacyResponse)
	if len(envelope) != 1 {
		t.Fatalf("%s missing", TrailerLegacyResponse)
	}
	resp, err := legacy.DecodeResponse(envelope[0])
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Type != legacy.RequestFriendSendInvitation || resp.Error == nil || *resp.Error != 52256 {
		t.Errorf("legacy response = %+v", resp)
	}
}

func TestGameService_ActorRequired(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		actor string
		want  codes.Code
	}{
		{name: "missing", actor: "", want: codes.Unauthenticated},
		{name: "malformed", actor: "not-an-id", want: codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ts.call(tt.actor, legacy.RequestMessageList, &Empty{}, &InboxResponse{})
			if status.Code(err) != tt.want {
				t.Errorf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}
}

func TestGameService_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := healthpb.NewHealthClient(ts.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName}, grpc.CallContentSubtype("proto"))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestServiceDescCoversRequestTypes(t *testing.T) {
	methods := make(map[string]bool, len(gameServiceDesc.Methods))
	for _, m := range gameServiceDesc.Methods {
		if methods[m.MethodName] {
			t.Errorf("duplicate method %s", m.MethodName)
		}
		methods[m.MethodName] = true
	}
	for _, rt := range legacy.RequestTypes {
		if !methods[rt] {
			t.Errorf("request type %s has no method", rt)
		}
	}
	if len(methods) != len(legacy.RequestTypes) {
		t.Errorf("methods = %d, request types = %d", len(methods), len(legacy.RequestTypes))
	}
}

func TestGRPCCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   codes.Code
		wantID apperrors.Code
	}{
		{name: "validation", err: apperrors.Validation("bad"), want: codes.InvalidArgument, wantID: apperrors.CodeOperationFailed},
		{name: "precondition", err: apperrors.ErrOutOfVotes, want: codes.FailedPrecondition, wantID: apperrors.CodeOutOfVotes},
		{name: "conflict", err: apperrors.Conflict("dup", nil), want: codes.AlreadyExists, wantID: apperrors.CodeOperationFailed},
		{name: "not found", err: apperrors.NotFound("module %d", 1), want: codes.NotFound, wantID: apperrors.CodeOperationFailed},
		{name: "circuit open", err: fmt.Errorf("store: %w", resilience.ErrCircuitOpen), want: codes.Unavailable, wantID: apperrors.CodeMLNOffline},
		{name: "unknown", err: errors.New("boom"), want: codes.Internal, wantID: apperrors.CodeOperationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := grpcCode(tt.err); got != tt.want {
				t.Errorf("grpcCode() = %v, want %v", got, tt.want)
			}
			if got := errorID(tt.err); got != tt.wantID {
				t.Errorf("errorID() = %d, want %d", got, tt.wantID)
			}
		})
	}
}
