// Package domain defines the persistent entities, value types, and storage
// contract shared by the symptobuddy persistence layer.
package domain

import (
	"slices"
	"strings"
	"time"
)

// ProfileID is the fixed key of the single device-local profile.
const ProfileID = "user"

// Wire formats for the calendar and wall-clock fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Gender enumerates the supported profile genders.
type Gender string

const (
	// GenderMale identifies a male profile.
	GenderMale Gender = "Male"
	// GenderFemale identifies a female profile.
	GenderFemale Gender = "Female"
)

// Valid reports whether g is one of the supported values.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// ProfileFields carries the editable part of a profile as submitted by the
// profile form.
type ProfileFields struct {
	FirstName   string `json:"firstName" validate:"required,notblank"`
	LastName    string `json:"lastName" validate:"required,notblank"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02,pastdate"`
	Gender      Gender `json:"gender" validate:"required,oneof=Male Female"`
}

// UserProfile is the singleton identity record stored per device.
type UserProfile struct {
	ID string `json:"id"`
	ProfileFields
}

// NewUserProfile binds fields to the singleton profile id.
func NewUserProfile(fields ProfileFields) UserProfile {
	return UserProfile{ID: ProfileID, ProfileFields: fields}
}

// Exists reports whether the profile has been established.
func (p UserProfile) Exists() bool {
	return p.ID != ""
}

// DisplayName joins first and last name.
func (p UserProfile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Age returns the age in whole years at now. A missing or unparsable date of
// birth yields 0.
func (p UserProfile) Age(now time.Time) int {
	if p.DateOfBirth == "" {
		return 0
	}
	dob, err := time.Parse(DateLayout, p.DateOfBirth)
	if err != nil {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// DiseaseInfo is the optional explanatory text returned with a prediction.
type DiseaseInfo struct {
	Overview  string `json:"overview"`
	Causes    string `json:"causes"`
	Symptoms  string `json:"symptoms"`
	NextSteps string `json:"next_steps"`
}

// Empty reports whether no section carries text.
func (d DiseaseInfo) Empty() bool {
	return d.Overview == "" && d.Causes == "" && d.Symptoms == "" && d.NextSteps == ""
}

// Prediction is the outcome of the external prediction service.
type Prediction struct {
	Label       string
	DiseaseInfo *DiseaseInfo
}

// Apply writes the prediction onto a record. Empty disease info is dropped.
func (p Prediction) Apply(rec *TestRecord) {
	rec.Prediction = p.Label
	rec.DiseaseInfo = nil
	if p.DiseaseInfo != nil && !p.DiseaseInfo.Empty() {
		info := *p.DiseaseInfo
		rec.DiseaseInfo = &info
	}
}

// TestRecord is one completed symptom-check session.
type TestRecord struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Symptoms    []string     `json:"symptoms"`
	Prediction  string       `json:"prediction"`
	DiseaseInfo *DiseaseInfo `json:"diseaseInfo,omitempty"`
}

// Predicted reports whether a prediction has been attached.
func (t TestRecord) Predicted() bool {
	return t.Prediction != ""
}

// Clone returns a deep copy.
func (t TestRecord) Clone() TestRecord {
	out := t
	out.Symptoms = slices.Clone(t.Symptoms)
	if out.Symptoms == nil {
		out.Symptoms = []string{}
	}
	if t.DiseaseInfo != nil {
		info := *t.DiseaseInfo
		out.DiseaseInfo = &info
	}
	return out
}

// TestDraft is what the symptom-check flow hands over before an id exists.
type TestDraft struct {
	Name       string
	Symptoms   []string
	Prediction *Prediction
}

// DefaultTestName labels records created without an explicit name.
const DefaultTestName = "Symptom check"

// KnownSymptoms is the catalogue offered by the symptom form.
var KnownSymptoms = []string{
	"Headache",
	"Fever",
	"Cough",
	"Nausea",
	"Runny Nose",
	"Stomach ache",
	"Sore throat",
	"Body ache",
	"Sneezing",
}

// SymptomSet is an insertion-ordered set of symptom labels where membership
// is toggled, so duplicates cannot occur.
type SymptomSet struct {
	labels []string
}

// Toggle adds label when absent and removes it when present. It reports the
// resulting membership.
func (s *SymptomSet) Toggle(label string) bool {
	if i := slices.Index(s.labels, label); i >= 0 {
		s.labels = slices.Delete(s.labels, i, i+1)
		return false
	}
	s.labels = append(s.labels, label)
	return true
}

// Contains reports membership.
func (s *SymptomSet) Contains(label string) bool {
	return slices.Contains(s.labels, label)
}

// Labels returns the members in insertion order.
func (s *SymptomSet) Labels() []string {
	out := slices.Clone(s.labels)
	if out == nil {
		return []string{}
	}
	return out
}

// NormalizeSymptoms trims labels and drops blanks and repeats, keeping the
// first occurrence. The result is never nil.
func NormalizeSymptoms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		label := strings.TrimSpace(raw)
		if label == "" || slices.Contains(out, label) {
			continue
		}
		out = append(out, label)
	}
	return out
}
