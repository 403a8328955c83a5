package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

// PolicyRepository reads per-teacher booking policies from the teacher
// profile. The engine never writes these.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// PolicyFor loads the booking policy for a teacher. Returns sql.ErrNoRows
// when the teacher does not exist.
func (r *PolicyRepository) PolicyFor(ctx context.Context, teacherID string) (*models.TeacherPolicy, error) {
	const query = `SELECT teacher_id, timezone, minimum_notice_hours, buffer_minutes, reschedule_notice_hours, cancel_notice_hours, meeting_link, active, updated_at FROM teacher_policies WHERE teacher_id = $1`
	var policy models.TeacherPolicy
	if err := r.db.GetContext(ctx, &policy, query, teacherID); err != nil {
		return nil, err
	}
	return &policy, nil
}
