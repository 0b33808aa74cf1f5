package patient

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const maxNameLength = 100

// NewPatient validates a create request and maps it to an unsaved Patient.
func NewPatient(in Input) (Patient, error) {
	return parseInput(in, true)
}

// parseChanges validates an update request. RegisteredDate is ignored.
func parseChanges(in Input) (Patient, error) {
	return parseInput(in, false)
}

func parseInput(in Input, create bool) (Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	// Surrounding whitespace is dropped; case is kept, so uniqueness stays
	// an exact match on the stored value.
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)

	fields := validate(in, create)
	p := Patient{Name: in.Name, Email: in.Email, Address: in.Address}

	var cause error
	if _, rejected := fields["dateOfBirth"]; !rejected {
		dob, err := ParseDate(in.DateOfBirth)
		if err != nil {
			fields["dateOfBirth"] = "Date of birth must be a valid date (YYYY-MM-DD)"
			cause = ErrInvalidDate
		}
		p.DateOfBirth = dob
	}
	if create {
		if _, rejected := fields["registeredDate"]; !rejected {
			registered, err := ParseDate(in.RegisteredDate)
			if err != nil {
				fields["registeredDate"] = "Registered date must be a valid date (YYYY-MM-DD)"
				cause = ErrInvalidDate
			}
			p.RegisteredDate = registered
		}
	}

	if len(fields) > 0 {
		return Patient{}, &ValidationError{Fields: fields, cause: cause}
	}
	return p, nil
}

func validate(in Input, create bool) map[string]string {
	fields := map[string]string{}
	switch {
	case in.Name == "":
		fields["name"] = "Name is required"
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		fields["name"] = "Name cannot exceed 100 characters"
	}
	switch {
	case in.Email == "":
		fields["email"] = "Email is required"
	case !validEmail(in.Email):
		fields["email"] = "Email should be valid"
	}
	if in.Address == "" {
		fields["address"] = "Address is required"
	}
	if strings.TrimSpace(in.DateOfBirth) == "" {
		fields["dateOfBirth"] = "Date of birth is required"
	}
	if create && strings.TrimSpace(in.RegisteredDate) == "" {
		fields["registeredDate"] = "Registered date is required"
	}
	return fields
}

// validEmail accepts a bare addr-spec only; display names are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD) in UTC.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(value))
}

func ToRecord(p Patient) Record {
	return Record{
		ID:          p.ID.String(),
		Name:        p.Name,
		Email:       p.Email,
		Address:     p.Address,
		DateOfBirth: p.DateOfBirth.Format(dateLayout),
	}
}

func ToRecords(patients []Patient) []Record {
	out := make([]Record, 0, len(patients))
	for _, p := range patients {
		out = append(out, ToRecord(p))
	}
	return out
}

func NewRegistrationEvent(p Patient) RegistrationEvent {
	return RegistrationEvent{
		PatientID: p.ID.String(),
		Name:      p.Name,
		Email:     p.Email,
		EventType: EventTypeCreated,
	}
}
