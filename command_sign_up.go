package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

type SignUpStudentMessage struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PhoneNumber    string `json:"phone_number"`
	OrganizationID string `json:"organization_id"`
}

func (e SignUpStudentMessage) Type() string { return "account.sign_up.student" }

// Validate checks the trimmed fields, blank names are rejected
func (e SignUpStudentMessage) Validate() error {
	e = e.trimmed()
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.PhoneNumber, validation.Required, validation.Length(6, 20)),
		validation.Field(&e.OrganizationID, validation.Length(0, 100)),
	)
}

func (e SignUpStudentMessage) trimmed() SignUpStudentMessage {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.PhoneNumber = strings.TrimSpace(e.PhoneNumber)
	e.OrganizationID = strings.TrimSpace(e.OrganizationID)
	return e
}

func (e SignUpStudentMessage) record(phone string) *Student {
	e = e.trimmed()
	return &Student{
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		PhoneNumber:    phone,
		OrganizationID: e.OrganizationID,
	}
}

type SignUpCitizenMessage struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

func (e SignUpCitizenMessage) Type() string { return "account.sign_up.citizen" }

func (e SignUpCitizenMessage) Validate() error {
	e = e.trimmed()
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.PhoneNumber, validation.Required, validation.Length(6, 20)),
	)
}

func (e SignUpCitizenMessage) trimmed() SignUpCitizenMessage {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.PhoneNumber = strings.TrimSpace(e.PhoneNumber)
	return e
}

func (e SignUpCitizenMessage) record(phone string) *Citizen {
	e = e.trimmed()
	return &Citizen{
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		PhoneNumber: phone,
	}
}
