// Package billingrpc defines the billing account provisioning RPC shared by
// the patient service (client) and the billing service (server).
//
// Messages travel as google.protobuf.Struct values so both sides share one
// wire contract without generated stubs.
package billingrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName                = "billing.BillingService"
	CreateBillingAccountMethod = "/" + ServiceName + "/CreateBillingAccount"
)

type AccountRequest struct {
	PatientID string
	Name      string
	Email     string
}

type AccountResponse struct {
	AccountID string
	Status    string
}

// Server is implemented by the billing service.
type Server interface {
	CreateBillingAccount(ctx context.Context, req AccountRequest) (AccountResponse, error)
}

func (r AccountRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"patient_id": r.PatientID,
		"name":       r.Name,
		"email":      r.Email,
	})
}

func accountRequestFromStruct(s *structpb.Struct) AccountRequest {
	f := s.GetFields()
	return AccountRequest{
		PatientID: f["patient_id"].GetStringValue(),
		Name:      f["name"].GetStringValue(),
		Email:     f["email"].GetStringValue(),
	}
}

func (r AccountResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"account_id": r.AccountID,
		"status":     r.Status,
	})
}

func accountResponseFromStruct(s *structpb.Struct) AccountResponse {
	f := s.GetFields()
	return AccountResponse{
		AccountID: f["account_id"].GetStringValue(),
		Status:    f["status"].GetStringValue(),
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateBillingAccount",
			Handler:    createBillingAccountHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "billing.proto",
}

func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}

func createBillingAccountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(Server).CreateBillingAccount(ctx, accountRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CreateBillingAccountMethod,
	}
	return interceptor(ctx, in, info, handle)
}

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CreateBillingAccount(ctx context.Context, req AccountRequest, opts ...grpc.CallOption) (AccountResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return AccountResponse{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CreateBillingAccountMethod, in, out, opts...); err != nil {
		return AccountResponse{}, err
	}
	return accountResponseFromStruct(out), nil
}
