package model

import "time"

type InitializeSessionRequest struct {
	PatientID      string `json:"patient_id"`
	Prefill        bool   `json:"prefill"`
	AllowEphemeral bool   `json:"allow_ephemeral"`
}

type InitializeSessionResponse struct {
	SessionID string   `json:"session_id"`
	Identity  Identity `json:"identity"`
	Draft     *Draft   `json:"draft,omitempty"`
	Source    string   `json:"source"`
}

type RecordChangeRequest struct {
	Update DraftUpdate `json:"update" binding:"required"`
}

type CommitBasicRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Age       int    `json:"age" binding:"omitempty,gte=0,lte=150"`
	Gender    string `json:"gender" binding:"omitempty,oneof=male female other"`
	Phone     string `json:"phone" binding:"omitempty,phone"`
	Address   string `json:"address"`
}

type CommitBasicResponse struct {
	Identity Identity `json:"identity"`
}

// PatientRecord is the remote record service's representation. Only the
// fields the hydration path reads are modelled.
type PatientRecord struct {
	PatientID          string              `json:"patient_id"`
	PatientData        *PatientData        `json:"patient_data,omitempty"`
	ClinicalParameters *ClinicalParameters `json:"clinical_parameters,omitempty"`
	Medications        []Medication        `json:"medications,omitempty"`
	ReportData         *ReportData         `json:"report_data,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
