package service

import (
	"fmt"
	"strings"
	"time"

	"team-tasks/internal/model"
)

// Transition is the effect of a member status change on its task.
// Successor is set only when a recurring task moves into Done.
type Transition struct {
	Completed        bool
	Successor        *model.Task
	SuccessorMembers []model.TaskMember
}

// Advance evaluates the Pending -> Done transition. A task already Done never
// transitions again, so it cannot spawn a second successor.
func Advance(task model.Task, members []model.TaskMember, now time.Time) Transition {
	if task.Status == model.TaskDone || !allMembersDone(members) {
		return Transition{}
	}
	successor, successorMembers := Successor(task, members, now)
	return Transition{
		Completed:        true,
		Successor:        successor,
		SuccessorMembers: successorMembers,
	}
}

// Successor builds the next occurrence of a recurring task with every member reset to pending.
// It returns nil for non-recurring tasks.
func Successor(task model.Task, members []model.TaskMember, now time.Time) (*model.Task, []model.TaskMember) {
	if task.RepeatType == model.RepeatNone || !task.RepeatType.Valid() {
		return nil, nil
	}
	next := &model.Task{
		Title:       task.Title,
		Description: task.Description,
		CreatedBy:   task.CreatedBy,
		Deadline:    NextDeadline(task.Deadline, task.RepeatType),
		RepeatType:  task.RepeatType,
		IsGroup:     task.IsGroup,
		Status:      model.TaskPending,
		CreatedAt:   now,
	}
	fresh := make([]model.TaskMember, 0, len(members))
	for _, m := range members {
		fresh = append(fresh, model.TaskMember{UserID: m.UserID, Status: model.MemberPending})
	}
	return next, fresh
}

func allMembersDone(members []model.TaskMember) bool {
	for _, m := range members {
		if m.Status != model.MemberDone {
			return false
		}
	}
	return true
}

// NextDeadline advances a date-only deadline by one recurrence period.
// Monthly steps clamp to the last day of the target month.
func NextDeadline(deadline time.Time, kind model.RepeatType) time.Time {
	d := DateOnly(deadline)
	switch kind {
	case model.RepeatDaily:
		return d.AddDate(0, 0, 1)
	case model.RepeatWeekly:
		return d.AddDate(0, 0, 7)
	case model.RepeatMonthly:
		return addMonthsClamped(d, 1)
	default:
		return d
	}
}

func addMonthsClamped(d time.Time, months int) time.Time {
	year, month, day := d.Date()
	firstOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, d.Location()).AddDate(0, months, 0)
	ty, tm, _ := firstOfTarget.Date()
	if last := daysInMonth(tm, ty); day > last {
		day = last
	}
	return time.Date(ty, tm, day, 0, 0, 0, 0, d.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}

// DateOnly keeps the calendar date of t and returns it as UTC midnight.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD deadline. An RFC 3339 timestamp is accepted and
// reduced to its calendar date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOnly(ts), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrValidation, raw)
}
