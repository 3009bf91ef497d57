package model

import "strings"

// IdentitySection is section 1 of a patient's personal info.
type IdentitySection struct {
	Image           string `json:"image,omitempty"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	CitizenID       string `json:"citizenID"`
	PatientID       string `json:"patient_id"`
	MotherName      string `json:"motherName,omitempty"`
	FatherName      string `json:"fatherName,omitempty"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	BirthPlace      string `json:"birthPlace,omitempty"`
	Gender          string `json:"patientGender,omitempty"`
	CurrentRelation string `json:"currentRelation,omitempty"`
	Height          string `json:"patientHeight,omitempty"`
	Weight          string `json:"patientWeight,omitempty"`
	Room            string `json:"patientRoom,omitempty"`
	DeviceID        string `json:"deviceID,omitempty"`
	Education       string `json:"education,omitempty"`
	WorkStatus      string `json:"workStatus,omitempty"`
	Insurance       string `json:"insurance,omitempty"`
	Income          string `json:"income,omitempty"`
	BackgroundInfo  string `json:"backgroundInfo,omitempty"`
	BloodType       string `json:"bloodType,omitempty"`
}

// ContactSection is section 2: the patient's contact person.
type ContactSection struct {
	FirstName           string `json:"contactFirstname,omitempty"`
	LastName            string `json:"contactLastname,omitempty"`
	CitizenID           string `json:"contactCitizenID,omitempty"`
	MotherName          string `json:"contactMotherName,omitempty"`
	FatherName          string `json:"contactFatherName,omitempty"`
	DateOfBirth         string `json:"contactDateOfBirth,omitempty"`
	BirthPlace          string `json:"contactBirthPlace,omitempty"`
	Gender              string `json:"contactPatientGender,omitempty"`
	CurrentRelationship string `json:"contactCurrentRelationship,omitempty"`
	Relation            string `json:"contactRelation,omitempty"`
	Education           string `json:"contactEducation,omitempty"`
	WorkStatus          string `json:"contactWorkStatus,omitempty"`
	Phone               string `json:"contactPhone,omitempty"`
	Address             string `json:"contactAddress,omitempty"`
	WorkAddress         string `json:"contactWorkAddress,omitempty"`
	Email               string `json:"contactEmail,omitempty"`
	Apply               string `json:"contactApply,omitempty"`
}

// PersonalInfo groups the four intake form sections. Sections 3 (medical
// history) and 4 (psychological assessment) are free-form.
type PersonalInfo struct {
	Identity IdentitySection `json:"section_1"`
	Contact  ContactSection  `json:"section_2"`
	Medical  JSONMap         `json:"section_3,omitempty"`
	Psych    JSONMap         `json:"section_4,omitempty"`
}

// CitizenID returns the trimmed identifier the record is keyed by.
func (p PersonalInfo) CitizenID() string {
	return strings.TrimSpace(p.Identity.CitizenID)
}

// FullName returns "first last" from section 1.
func (p PersonalInfo) FullName() string {
	return strings.TrimSpace(p.Identity.FirstName + " " + p.Identity.LastName)
}
