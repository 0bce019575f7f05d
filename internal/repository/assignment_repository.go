package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorlink/mentorlink-api/internal/models"
)

// ErrNotAllStudents is returned when a batch assignment names an id that does
// not belong to a student account.
var ErrNotAllStudents = fmt.Errorf("one or more target accounts are not students")

// AssignmentRepository persists student-teacher assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListUnassignedStudents returns student accounts with no assignment row for
// the teacher.
func (r *AssignmentRepository) ListUnassignedStudents(ctx context.Context, teacherID string) ([]models.AccountInfo, error) {
	const query = `
SELECT u.id, u.full_name, u.email
FROM users u
LEFT JOIN student_teacher_assignment sta ON u.id = sta.student_id AND sta.teacher_id = $1
WHERE u.user_type = $2 AND sta.student_id IS NULL
ORDER BY u.created_at ASC`
	var students []models.AccountInfo
	if err := r.db.SelectContext(ctx, &students, query, teacherID, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("list unassigned students: %w", err)
	}
	return students, nil
}

// ListAssignedStudents returns the students assigned to the teacher in
// assignment order.
func (r *AssignmentRepository) ListAssignedStudents(ctx context.Context, teacherID string) ([]models.AssignedAccount, error) {
	const query = `
SELECT u.id AS account_id, u.full_name, u.email, sta.created_at AS assigned_at
FROM users u
JOIN student_teacher_assignment sta ON u.id = sta.student_id
WHERE sta.teacher_id = $1
ORDER BY sta.created_at ASC`
	var students []models.AssignedAccount
	if err := r.db.SelectContext(ctx, &students, query, teacherID); err != nil {
		return nil, fmt.Errorf("list assigned students: %w", err)
	}
	return students, nil
}

// ListAssignedTeachers returns the teachers the student is assigned to in
// assignment order.
func (r *AssignmentRepository) ListAssignedTeachers(ctx context.Context, studentID string) ([]models.AssignedAccount, error) {
	const query = `
SELECT u.id AS account_id, u.full_name, u.email, sta.created_at AS assigned_at
FROM users u
JOIN student_teacher_assignment sta ON u.id = sta.teacher_id
WHERE sta.student_id = $1
ORDER BY sta.created_at ASC`
	var teachers []models.AssignedAccount
	if err := r.db.SelectContext(ctx, &teachers, query, studentID); err != nil {
		return nil, fmt.Errorf("list assigned teachers: %w", err)
	}
	return teachers, nil
}

// AssignBatch links each student to the teacher inside one transaction.
// Duplicate pairs are silent no-ops; an id that is not a student account
// aborts the whole batch. Returns the number of rows actually inserted.
func (r *AssignmentRepository) AssignBatch(ctx context.Context, teacherID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin assignment batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	valid, err := countStudents(ctx, tx, studentIDs)
	if err != nil {
		return 0, err
	}
	if valid != len(dedupe(studentIDs)) {
		return 0, ErrNotAllStudents
	}

	const insert = `INSERT INTO student_teacher_assignment (id, student_id, teacher_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, teacher_id) DO NOTHING`

	inserted := 0
	now := time.Now().UTC()
	for _, studentID := range dedupe(studentIDs) {
		result, err := tx.ExecContext(ctx, insert, uuid.NewString(), studentID, teacherID, now)
		if err != nil {
			return 0, fmt.Errorf("assign student %s: %w", studentID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("check assigned rows: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit assignment batch: %w", err)
	}
	return inserted, nil
}

// Unassign removes the assignment row for the pair. A missing row is not an
// error; the returned flag reports whether anything was deleted.
func (r *AssignmentRepository) Unassign(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `DELETE FROM student_teacher_assignment WHERE student_id = $1 AND teacher_id = $2`
	result, err := r.db.ExecContext(ctx, query, studentID, teacherID)
	if err != nil {
		return false, fmt.Errorf("unassign student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check unassigned rows: %w", err)
	}
	return affected > 0, nil
}

// CountForTeacher returns the number of students assigned to the teacher.
func (r *AssignmentRepository) CountForTeacher(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_teacher_assignment WHERE teacher_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher assignments: %w", err)
	}
	return count, nil
}

// CountForStudent returns the number of teachers the student is assigned to.
func (r *AssignmentRepository) CountForStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_teacher_assignment WHERE student_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count student assignments: %w", err)
	}
	return count, nil
}

func countStudents(ctx context.Context, tx *sqlx.Tx, ids []string) (int, error) {
	unique := dedupe(ids)
	placeholders := make([]string, len(unique))
	args := make([]interface{}, 0, len(unique)+1)
	for i, id := range unique {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, models.RoleStudent)
	query := fmt.Sprintf("SELECT COUNT(*) FROM users WHERE id IN (%s) AND user_type = $%d",
		strings.Join(placeholders, ","), len(unique)+1)
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("verify student roles: %w", err)
	}
	return count, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
