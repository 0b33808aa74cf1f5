package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/pm/patient-management/libs/billingrpc"
	"github.com/pm/patient-management/libs/grpcx"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// ErrDisabled is returned when no billing address is configured.
var ErrDisabled = errors.New("billing provisioning disabled")

// Provisioner creates billing accounts through the billing service's gRPC API.
type Provisioner struct {
	conn   *grpc.ClientConn
	client *billingrpc.Client
}

func NewProvisioner(addr string, extra ...grpc.DialOption) (*Provisioner, error) {
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{}, extra...)
	if err != nil {
		return nil, fmt.Errorf("dial billing %s: %w", addr, err)
	}
	return &Provisioner{
		conn:   conn,
		client: billingrpc.NewClient(conn),
	}, nil
}

func (p *Provisioner) CreateAccount(ctx context.Context, patientID, name, email string) (patient.AccountRef, error) {
	resp, err := p.client.CreateBillingAccount(ctx, billingrpc.AccountRequest{
		PatientID: patientID,
		Name:      name,
		Email:     email,
	})
	if err != nil {
		return patient.AccountRef{}, err
	}
	return patient.AccountRef{AccountID: resp.AccountID, Status: resp.Status}, nil
}

func (p *Provisioner) Close() error {
	return p.conn.Close()
}

// ReadyCheck reports whether the billing connection is usable. An idle
// connection is nudged to connect and counts as ready.
func (p *Provisioner) ReadyCheck() func(context.Context) error {
	return func(context.Context) error {
		switch state := p.conn.GetState(); state {
		case connectivity.Idle:
			p.conn.Connect()
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return fmt.Errorf("billing connection %s", state)
		default:
			return nil
		}
	}
}

// Disabled is used when billing is not configured. Every call fails with
// ErrDisabled so the orchestrator logs and counts it like any other
// billing failure.
type Disabled struct{}

func (Disabled) CreateAccount(context.Context, string, string, string) (patient.AccountRef, error) {
	return patient.AccountRef{}, ErrDisabled
}
