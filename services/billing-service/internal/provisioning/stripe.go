package provisioning

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
)

// StripeCustomers creates Stripe customers with a per-patient idempotency
// key, so retries and concurrent requests resolve to the same customer.
type StripeCustomers struct {
	client customer.Client
}

func NewStripeCustomers(secretKey string, backend stripe.Backend) *StripeCustomers {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeCustomers{client: customer.Client{B: backend, Key: secretKey}}
}

func (c *StripeCustomers) CreateCustomer(ctx context.Context, patientID, name, email string) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.SetIdempotencyKey("patient-" + patientID)
	params.AddMetadata("patient_id", patientID)

	cus, err := c.client.New(params)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}
