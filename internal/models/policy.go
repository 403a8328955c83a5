package models

import "time"

// TeacherPolicy is the per-teacher booking rule set, owned by the teacher
// profile and read-only to the engine. Timezone is the IANA zone the
// teacher's civil slot times are declared in.
type TeacherPolicy struct {
	TeacherID             string    `db:"teacher_id" json:"teacher_id"`
	Timezone              string    `db:"timezone" json:"timezone"`
	MinimumNoticeHours    int       `db:"minimum_notice_hours" json:"minimum_notice_hours"`
	BufferMinutes         int       `db:"buffer_minutes" json:"buffer_minutes"`
	RescheduleNoticeHours int       `db:"reschedule_notice_hours" json:"reschedule_notice_hours"`
	CancelNoticeHours     int       `db:"cancel_notice_hours" json:"cancel_notice_hours"`
	MeetingLink           string    `db:"meeting_link" json:"meeting_link"`
	Active                bool      `db:"active" json:"active"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// MeetingSnapshot derives the immutable metadata copied onto a lesson at
// booking time.
func (p TeacherPolicy) MeetingSnapshot() MeetingMetadata {
	return MeetingMetadata{
		MeetingLink:           p.MeetingLink,
		BufferMinutes:         p.BufferMinutes,
		RescheduleNoticeHours: p.RescheduleNoticeHours,
		CancelNoticeHours:     p.CancelNoticeHours,
	}
}
