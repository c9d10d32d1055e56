package model

import (
	"time"
)

// DraftStatus is fixed for every locally persisted record; the value exists so
// stored payloads are self-describing when inspected in redis or postgres.
const DraftStatus = "DRAFT"

// Draft is the full in-progress state of one patient's multi-section form,
// filed under the identifier the session is currently working with.
type Draft struct {
	OwnerID            string              `db:"owner_id" json:"owner_id"`
	Status             string              `db:"status" json:"status"`
	LastUpdatedAt      time.Time           `db:"last_updated_at" json:"last_updated_at"`
	PatientData        *PatientData        `json:"patient_data,omitempty"`
	ClinicalParameters *ClinicalParameters `json:"clinical_parameters,omitempty"`
	Medications        []Medication        `json:"medications,omitempty"`
	ReportData         *ReportData         `json:"report_data,omitempty"`
	ReportFiles        []ReportFile        `json:"report_files,omitempty"`
	SavedSections      map[string]bool     `json:"saved_sections,omitempty"`
}

// DraftUpdate is a partial update: nil sections are preserved on merge, so a
// save that only touched medications never erases demographics.
type DraftUpdate struct {
	PatientData        *PatientData        `json:"patient_data,omitempty"`
	ClinicalParameters *ClinicalParameters `json:"clinical_parameters,omitempty"`
	Medications        []Medication        `json:"medications,omitempty"`
	ReportData         *ReportData         `json:"report_data,omitempty"`
	ReportFiles        []ReportFile        `json:"report_files,omitempty"`
	SavedSections      map[string]bool     `json:"saved_sections,omitempty"`
}

type PatientData struct {
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	Investigations string `json:"investigations,omitempty"`
	History        string `json:"history,omitempty"`
}

type ClinicalParameters struct {
	SystolicBP  string    `json:"systolic_bp,omitempty"`
	DiastolicBP string    `json:"diastolic_bp,omitempty"`
	PulseRate   string    `json:"pulse_rate,omitempty"`
	Temperature string    `json:"temperature,omitempty"`
	SpO2        string    `json:"spo2,omitempty"`
	Weight      string    `json:"weight,omitempty"`
	Height      string    `json:"height,omitempty"`
	BloodSugar  string    `json:"blood_sugar,omitempty"`
	RecordedAt  time.Time `json:"recorded_at,omitempty"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type ReportData struct {
	Title       string    `json:"title,omitempty"`
	Category    string    `json:"category,omitempty"`
	Findings    string    `json:"findings,omitempty"`
	ReportedAt  time.Time `json:"reported_at,omitempty"`
	ReferredBy  string    `json:"referred_by,omitempty"`
	Impressions string    `json:"impressions,omitempty"`
}

type ReportFile struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Category   string `json:"category,omitempty"`
	StorageRef string `json:"storage_ref,omitempty"`
}

// Section names tracked in SavedSections.
const (
	SectionBasic       = "basic"
	SectionClinical    = "clinical"
	SectionMedications = "medications"
	SectionDiagnosis   = "diagnosis"
	SectionReports     = "reports"
)

// Merge applies a partial update over an existing draft, section by section.
// Sections absent from the update keep their current contents. SavedSections
// entries are merged key-wise so one section's commit never clears another's.
func (d *Draft) Merge(update *DraftUpdate) {
	if update == nil {
		return
	}
	if update.PatientData != nil {
		d.PatientData = update.PatientData
	}
	if update.ClinicalParameters != nil {
		d.ClinicalParameters = update.ClinicalParameters
	}
	if update.Medications != nil {
		d.Medications = update.Medications
	}
	if update.ReportData != nil {
		d.ReportData = update.ReportData
	}
	if update.ReportFiles != nil {
		d.ReportFiles = update.ReportFiles
	}
	if update.SavedSections != nil {
		if d.SavedSections == nil {
			d.SavedSections = make(map[string]bool, len(update.SavedSections))
		}
		for section, saved := range update.SavedSections {
			d.SavedSections[section] = saved
		}
	}
}

// AllSectionsSaved reports whether every tracked section has been durably
// committed server-side, at which point the local draft is disposable.
func (d *Draft) AllSectionsSaved() bool {
	if len(d.SavedSections) == 0 {
		return false
	}
	for _, section := range []string{SectionBasic, SectionClinical, SectionMedications, SectionDiagnosis, SectionReports} {
		if !d.SavedSections[section] {
			return false
		}
	}
	return true
}
