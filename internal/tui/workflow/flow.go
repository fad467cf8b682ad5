package workflow

import (
	"context"

	"github.com/alkime/consults/internal/tui/components/phases"
	"github.com/alkime/consults/pkg/uictl"
)

// NewRecordingFlow sequences the recording screens. The appointment picker
// is skipped when sel already names an appointment. Once saving starts the
// flow cannot go back.
func NewRecordingFlow(ctx context.Context, recorder Recorder, sel *Selection, levels uictl.Levels[int16]) phases.Model {
	var steps []phases.Phase
	pick := sel.AppointmentID == ""
	if pick {
		steps = append(steps, phases.NewPhase("Appointment", NewAppointments(ctx, recorder, sel)))
	}

	rec := newRecordingPhase(ctx, recorder, sel, levels)
	rec.backable = pick

	steps = append(steps,
		phases.NewPhase("Recording", rec),
		phases.NewCommittedPhase("Saving", NewSaving(ctx, recorder)),
	)

	return phases.New(steps)
}
