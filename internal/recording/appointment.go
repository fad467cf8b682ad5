package recording

import (
	"fmt"
	"strings"
	"time"
)

// Appointment is the subset of an upcoming appointment used to label and
// link a recording.
type Appointment struct {
	ID          string    `json:"id"`
	DoctorName  string    `json:"doctorName"`
	Specialty   string    `json:"specialty"`
	PatientName string    `json:"patientName,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
}

// DeriveTitle labels a recording from its appointment, falling back to the
// capture timestamp when there is no appointment or it names no doctor.
func DeriveTitle(appt *Appointment, now time.Time) string {
	if appt != nil {
		doctor := strings.TrimSpace(appt.DoctorName)
		specialty := strings.TrimSpace(appt.Specialty)

		switch {
		case doctor != "" && specialty != "":
			return fmt.Sprintf("Consultation with %s (%s)", doctor, specialty)
		case doctor != "":
			return "Consultation with " + doctor
		}
	}

	return "Consultation recording " + now.Format("2006-01-02 15:04")
}

// FindAppointment returns the appointment with the given id, or nil.
func FindAppointment(appts []Appointment, id string) *Appointment {
	if id == "" {
		return nil
	}

	for i := range appts {
		if appts[i].ID == id {
			return &appts[i]
		}
	}

	return nil
}
