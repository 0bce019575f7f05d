package models

import "time"

// Assignment is a directed link from a student account to a teacher account.
// The (student, teacher) pair is unique; unassignment removes the row.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignedAccount joins an assignment row with the counterparty account.
type AssignedAccount struct {
	AccountID  string    `db:"account_id" json:"account_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}
