package billing

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pm/patient-management/libs/billingrpc"
	"github.com/pm/patient-management/libs/grpcx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type stubServer struct {
	mu         sync.Mutex
	requests   []billingrpc.AccountRequest
	requestIDs []string
}

func (s *stubServer) CreateBillingAccount(ctx context.Context, req billingrpc.AccountRequest) (billingrpc.AccountResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.requestIDs = append(s.requestIDs, md.Get(grpcx.RequestIDMetadataKey)...)
	}
	if req.PatientID == "unavailable" {
		return billingrpc.AccountResponse{}, status.Error(codes.Unavailable, "storage down")
	}
	return billingrpc.AccountResponse{AccountID: "acct-" + req.PatientID, Status: "active"}, nil
}

func startServer(t *testing.T, srv billingrpc.Server) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpcx.NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	billingrpc.Register(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestProvisionerCreateAccount(t *testing.T) {
	stub := &stubServer{}
	addr := startServer(t, stub)

	p, err := NewProvisioner(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(grpcx.WithRequestID(context.Background(), "req-1"), 5*time.Second)
	defer cancel()

	ref, err := p.CreateAccount(ctx, "p-1", "Ann", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "acct-p-1", ref.AccountID)
	assert.Equal(t, "active", ref.Status)

	require.Len(t, stub.requests, 1)
	assert.Equal(t, billingrpc.AccountRequest{PatientID: "p-1", Name: "Ann", Email: "a@x.com"}, stub.requests[0])
	assert.Equal(t, []string{"req-1"}, stub.requestIDs)
}

func TestProvisionerSurfacesRemoteErrors(t *testing.T) {
	addr := startServer(t, &stubServer{})
	p, err := NewProvisioner(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = p.CreateAccount(ctx, "unavailable", "Ann", "a@x.com")
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestProvisionerDialIsLazy(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	p, err := NewProvisioner(addr)
	require.NoError(t, err, "constructing a client does not require the peer to be up")
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = p.CreateAccount(ctx, "p-1", "Ann", "a@x.com")
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.CreateAccount(context.Background(), "p-1", "Ann", "a@x.com")
	assert.ErrorIs(t, err, ErrDisabled)
}
