package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	// EventsTopic is the stream RegistrationEvents are published to.
	EventsTopic = "patient.events"

	EventTypeCreated = "created"

	dateLayout = "2006-01-02"
)

// Patient is the persisted record. ID and RegisteredDate never change after insert.
type Patient struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Address        string
	DateOfBirth    time.Time
	RegisteredDate time.Time
}

// Input is the create/update request shape. Dates are ISO (YYYY-MM-DD)
// strings; RegisteredDate is only read on create.
type Input struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	DateOfBirth    string `json:"dateOfBirth"`
	RegisteredDate string `json:"registeredDate,omitempty"`
}

// Record is the response shape returned by every operation.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	DateOfBirth string `json:"dateOfBirth"`
}

type RegistrationEvent struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	EventType string `json:"eventType"`
}

// AccountRef identifies the billing account created for a patient.
type AccountRef struct {
	AccountID string
	Status    string
}
