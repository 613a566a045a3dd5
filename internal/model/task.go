package model

import "time"

// TaskStatus is the overall state of a task.
type TaskStatus string

const (
	TaskPending TaskStatus = "Pending"
	TaskDone    TaskStatus = "Done"
)

// RepeatType controls whether finishing a task spawns a successor.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

// Valid reports whether r is one of the known repeat kinds.
func (r RepeatType) Valid() bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

// Member statuses. Only MemberDone counts towards completion; clients may write other values.
const (
	MemberPending = "pending"
	MemberDone    = "done"
)

// Task represents a unit of work assigned to one or more users.
// Deadline is date-only and always stored as UTC midnight.
type Task struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	Description string
	CreatedBy   string     `gorm:"index"`
	Deadline    time.Time  `gorm:"index"`
	RepeatType  RepeatType `gorm:"default:none"`
	IsGroup     bool       `gorm:"default:false"`
	Status      TaskStatus `gorm:"index;default:Pending"`
	CreatedAt   time.Time
}

// TaskMember is the per-user assignment record within a task.
type TaskMember struct {
	ID     string `gorm:"primaryKey"`
	TaskID string `gorm:"index"`
	UserID string `gorm:"index"`
	Status string `gorm:"default:pending"`
}

// MemberView is a task member joined with the user's display name.
type MemberView struct {
	UserID string
	Status string
	Name   string
}

// TaskWithMembers is the read projection used by listings.
type TaskWithMembers struct {
	Task
	Members []MemberView
}

// TaskWithCreator is a task joined with its creator's display name, used by exports.
type TaskWithCreator struct {
	Task
	CreatedByName string
}
