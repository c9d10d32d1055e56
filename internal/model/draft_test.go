package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePreservesOmittedSections(t *testing.T) {
	draft := &Draft{
		OwnerID:     "p-1",
		PatientData: &PatientData{FirstName: "Asha", Diagnosis: "migraine"},
		Medications: []Medication{{Name: "ibuprofen", Dosage: "400mg"}},
	}

	draft.Merge(&DraftUpdate{
		ClinicalParameters: &ClinicalParameters{PulseRate: "72"},
	})

	assert.Equal(t, "Asha", draft.PatientData.FirstName)
	assert.Equal(t, "migraine", draft.PatientData.Diagnosis)
	assert.Len(t, draft.Medications, 1)
	assert.Equal(t, "72", draft.ClinicalParameters.PulseRate)
}

func TestMergeSavedSectionsIsKeywise(t *testing.T) {
	draft := &Draft{SavedSections: map[string]bool{SectionBasic: true}}

	draft.Merge(&DraftUpdate{SavedSections: map[string]bool{SectionClinical: true}})

	assert.True(t, draft.SavedSections[SectionBasic])
	assert.True(t, draft.SavedSections[SectionClinical])
}

func TestMergeNilUpdateIsNoop(t *testing.T) {
	draft := &Draft{OwnerID: "p-1", PatientData: &PatientData{FirstName: "Asha"}}
	draft.Merge(nil)
	assert.Equal(t, "Asha", draft.PatientData.FirstName)
}

func TestAllSectionsSaved(t *testing.T) {
	draft := &Draft{}
	assert.False(t, draft.AllSectionsSaved())

	draft.SavedSections = map[string]bool{SectionBasic: true}
	assert.False(t, draft.AllSectionsSaved())

	for _, section := range []string{SectionBasic, SectionClinical, SectionMedications, SectionDiagnosis, SectionReports} {
		draft.SavedSections[section] = true
	}
	assert.True(t, draft.AllSectionsSaved())
}

func TestIdentityAdvanceIsMonotonic(t *testing.T) {
	ident := Unidentified()

	next, err := ident.Advance(Ephemeral("local-1"))
	assert.NoError(t, err)
	assert.Equal(t, IdentityEphemeral, next.State)

	next, err = next.Advance(Permanent("p-42"))
	assert.NoError(t, err)
	assert.Equal(t, IdentityPermanent, next.State)

	// backward moves are rejected
	_, err = next.Advance(Ephemeral("local-2"))
	assert.Error(t, err)

	// a different permanent id is rejected once frozen
	_, err = next.Advance(Permanent("p-43"))
	assert.Error(t, err)

	// the same permanent id is a no-op
	same, err := next.Advance(Permanent("p-42"))
	assert.NoError(t, err)
	assert.Equal(t, "p-42", same.ID)
}

func TestUnidentifiedIsNotIdentified(t *testing.T) {
	assert.False(t, Unidentified().Identified())
	assert.True(t, Ephemeral("local-1").Identified())
	assert.True(t, Permanent("p-1").Identified())
}
