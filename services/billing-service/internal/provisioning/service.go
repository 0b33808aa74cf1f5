// Package provisioning implements the billing account RPC.
package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pm/patient-management/libs/billingrpc"
	"github.com/pm/patient-management/services/billing-service/internal/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AccountStore interface {
	Create(ctx context.Context, a storage.Account) (storage.Account, bool, error)
	GetByPatientID(ctx context.Context, patientID string) (storage.Account, error)
}

// CustomerCreator registers the patient with an external payment provider
// and returns the provider's customer id.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, patientID, name, email string) (string, error)
}

type Observer interface {
	AccountRequest(result string)
}

const (
	ResultCreated  = "created"
	ResultExisting = "existing"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

type Service struct {
	accounts  AccountStore
	customers CustomerCreator
	observer  Observer
	logger    *slog.Logger
}

// New returns the RPC implementation. customers may be nil, in which case
// accounts are kept locally only.
func New(accounts AccountStore, customers CustomerCreator, observer Observer, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, customers: customers, observer: observer, logger: logger}
}

var _ billingrpc.Server = (*Service)(nil)

// CreateBillingAccount is idempotent per patient id: a repeated call returns
// the account created by the first one.
func (s *Service) CreateBillingAccount(ctx context.Context, req billingrpc.AccountRequest) (billingrpc.AccountResponse, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		s.observe(ResultInvalid)
		return billingrpc.AccountResponse{}, status.Error(codes.InvalidArgument, "patient_id is required")
	}

	existing, err := s.accounts.GetByPatientID(ctx, req.PatientID)
	if err == nil {
		s.observe(ResultExisting)
		return toResponse(existing), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return s.unavailable(ctx, req.PatientID, err)
	}

	account := storage.Account{
		ID:        uuid.NewString(),
		PatientID: req.PatientID,
		Name:      req.Name,
		Email:     req.Email,
		Provider:  storage.ProviderLocal,
		Status:    storage.StatusActive,
	}
	if s.customers != nil {
		customerID, err := s.customers.CreateCustomer(ctx, req.PatientID, req.Name, req.Email)
		if err != nil {
			s.observe(ResultError)
			s.logger.ErrorContext(ctx, "payment provider customer creation failed", "patient_id", req.PatientID, "err", err)
			return billingrpc.AccountResponse{}, status.Error(codes.Unavailable, "payment provider unavailable")
		}
		account.Provider = storage.ProviderStripe
		account.ProviderRef = customerID
	}

	saved, created, err := s.accounts.Create(ctx, account)
	if err != nil {
		return s.unavailable(ctx, req.PatientID, err)
	}
	if !created {
		s.observe(ResultExisting)
		return toResponse(saved), nil
	}

	s.observe(ResultCreated)
	s.logger.InfoContext(ctx, "billing account created", "patient_id", saved.PatientID, "account_id", saved.ID, "provider", saved.Provider)
	return toResponse(saved), nil
}

func (s *Service) unavailable(ctx context.Context, patientID string, err error) (billingrpc.AccountResponse, error) {
	s.observe(ResultError)
	s.logger.ErrorContext(ctx, "billing account storage failed", "patient_id", patientID, "err", err)
	return billingrpc.AccountResponse{}, status.Error(codes.Unavailable, "billing storage unavailable")
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.AccountRequest(result)
	}
}

func toResponse(a storage.Account) billingrpc.AccountResponse {
	return billingrpc.AccountResponse{AccountID: a.ID, Status: a.Status}
}
