package provisioning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pm/patient-management/libs/billingrpc"
	"github.com/pm/patient-management/services/billing-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCustomers struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCustomers) CreateCustomer(_ context.Context, patientID, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "cus_" + patientID, nil
}

type brokenStore struct{}

func (brokenStore) Create(context.Context, storage.Account) (storage.Account, bool, error) {
	return storage.Account{}, false, errors.New("db down")
}

func (brokenStore) GetByPatientID(context.Context, string) (storage.Account, error) {
	return storage.Account{}, errors.New("db down")
}

type resultCounter struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *resultCounter) AccountRequest(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]int{}
	}
	c.results[result]++
}

func TestCreateBillingAccountIsIdempotent(t *testing.T) {
	repo := storage.NewMemoryAccountRepository()
	obs := &resultCounter{}
	svc := New(repo, nil, obs, discardLogger())
	ctx := context.Background()

	first, err := svc.CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1", Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.AccountID)
	assert.Equal(t, storage.StatusActive, first.Status)

	second, err := svc.CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1", Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.Len())

	saved, err := repo.GetByPatientID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderLocal, saved.Provider)
	assert.Equal(t, 1, obs.results[ResultCreated])
	assert.Equal(t, 1, obs.results[ResultExisting])
}

func TestCreateBillingAccountConcurrentCallsShareAccount(t *testing.T) {
	repo := storage.NewMemoryAccountRepository()
	svc := New(repo, nil, nil, discardLogger())

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.CreateBillingAccount(context.Background(), billingrpc.AccountRequest{PatientID: "p1"})
			if assert.NoError(t, err) {
				ids[i] = resp.AccountID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, repo.Len())
}

func TestCreateBillingAccountWithCustomers(t *testing.T) {
	repo := storage.NewMemoryAccountRepository()
	customers := &fakeCustomers{}
	svc := New(repo, customers, nil, discardLogger())
	ctx := context.Background()

	_, err := svc.CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1", Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = svc.CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1", Name: "Ann", Email: "a@x.com"})
	require.NoError(t, err)

	saved, err := repo.GetByPatientID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, storage.ProviderStripe, saved.Provider)
	assert.Equal(t, "cus_p1", saved.ProviderRef)
	assert.Equal(t, 1, customers.calls)
}

func TestCreateBillingAccountErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(storage.NewMemoryAccountRepository(), nil, nil, discardLogger()).
		CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "  "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = New(brokenStore{}, nil, nil, discardLogger()).
		CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1"})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	repo := storage.NewMemoryAccountRepository()
	_, err = New(repo, &fakeCustomers{err: errors.New("stripe down")}, nil, discardLogger()).
		CreateBillingAccount(ctx, billingrpc.AccountRequest{PatientID: "p1"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Zero(t, repo.Len(), "no local account without the provider customer")
}

func TestStripeCustomersSendsIdempotencyKey(t *testing.T) {
	var (
		gotPath     string
		gotIdemKey  string
		gotEmail    string
		gotMetadata string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdemKey = r.Header.Get("Idempotency-Key")
		_ = r.ParseForm()
		gotEmail = r.PostForm.Get("email")
		gotMetadata = r.PostForm.Get("metadata[patient_id]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cus_123","object":"customer"}`))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	customers := NewStripeCustomers("sk_test_123", backend)

	id, err := customers.CreateCustomer(context.Background(), "p1", "Ann", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)
	assert.Equal(t, "/v1/customers", gotPath)
	assert.Equal(t, "patient-p1", gotIdemKey)
	assert.Equal(t, "a@x.com", gotEmail)
	assert.Equal(t, "p1", gotMetadata)
}
