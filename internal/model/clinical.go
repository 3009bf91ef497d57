package model

// Note is a free-text caregiver note.
type Note struct {
	ID        string `json:"note_id"`
	Title     string `json:"note_title"`
	Body      string `json:"note_data"`
	Date      string `json:"note_date"`
	CreatedBy string `json:"created_by"`
	Timestamp string `json:"timestamp"`
}

// NoteMap holds notes keyed by note id.
type NoteMap map[string]*Note

// SignedHC is one signed health-check form submission.
type SignedHC struct {
	ID        string  `json:"signed_hc_id"`
	Data      JSONMap `json:"signed_hc_data"`
	CreatedBy string  `json:"created_by"`
	InsertTS  string  `json:"insert_ts"`
}

// SignedHCLedger maps DD-MM-YY date -> form type -> submissions in order.
type SignedHCLedger map[string]map[string][]SignedHC

// VitalType names a tracked vital sign series.
type VitalType string

const (
	VitalHeartBeat VitalType = "heart_beat"
	VitalOxygen    VitalType = "oxygen"
	VitalStress    VitalType = "stress"
	VitalSleep     VitalType = "sleep"
	VitalVitality  VitalType = "vitality"
)

// VitalTypes lists every tracked series.
var VitalTypes = []VitalType{VitalHeartBeat, VitalOxygen, VitalStress, VitalSleep, VitalVitality}

func (v VitalType) Valid() bool {
	for _, t := range VitalTypes {
		if v == t {
			return true
		}
	}
	return false
}

// VitalReading is one measurement.
type VitalReading struct {
	Value     float64 `json:"value"`
	Date      string  `json:"date"`
	Timestamp string  `json:"timestamp"`
}

// Vitals holds an append-only series per vital type.
type Vitals map[VitalType][]VitalReading

// NewVitals returns vitals with every series present and empty.
func NewVitals() Vitals {
	v := make(Vitals, len(VitalTypes))
	for _, t := range VitalTypes {
		v[t] = []VitalReading{}
	}
	return v
}
