package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"team-tasks/internal/model"
)

// TaskRepository handles tasks and their member rows.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateWithMembers inserts a task and its member rows in one transaction.
func (r *TaskRepository) CreateWithMembers(ctx context.Context, task *model.Task, members []model.TaskMember) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertTask(tx, task, members)
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func insertTask(tx *gorm.DB, task *model.Task, members []model.TaskMember) error {
	if err := tx.Create(task).Error; err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	for i := range members {
		members[i].TaskID = task.ID
	}
	return tx.Create(&members).Error
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListNewestFirst returns every task ordered by creation time, newest first.
func (r *TaskRepository) ListNewestFirst(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOpenForUser returns tasks that are not Done where the user's own member row is not done.
func (r *TaskRepository) ListOpenForUser(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Joins("JOIN task_members ON task_members.task_id = tasks.id").
		Where("task_members.user_id = ? AND task_members.status <> ? AND tasks.status <> ?",
			userID, model.MemberDone, model.TaskDone).
		Order("tasks.deadline ASC, tasks.created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListWithCreator returns all tasks joined with the creator's display name.
func (r *TaskRepository) ListWithCreator(ctx context.Context) ([]model.TaskWithCreator, error) {
	var rows []model.TaskWithCreator
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("tasks.*, users.name AS created_by_name").
		Joins("LEFT JOIN users ON users.id = tasks.created_by").
		Order("tasks.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tasks with creator: %w", err)
	}
	return rows, nil
}

type memberRow struct {
	TaskID string
	UserID string
	Status string
	Name   string
}

// Members returns member views for one task in insertion order.
func (r *TaskRepository) Members(ctx context.Context, taskID string) ([]model.MemberView, error) {
	byTask, err := r.MembersByTask(ctx, []string{taskID})
	if err != nil {
		return nil, err
	}
	return byTask[taskID], nil
}

// MembersByTask returns member views for several tasks keyed by task id.
func (r *TaskRepository) MembersByTask(ctx context.Context, taskIDs []string) (map[string][]model.MemberView, error) {
	result := make(map[string][]model.MemberView, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}
	var rows []memberRow
	if err := r.db.WithContext(ctx).Table("task_members").
		Select("task_members.task_id, task_members.user_id, task_members.status, users.name").
		Joins("LEFT JOIN users ON users.id = task_members.user_id").
		Where("task_members.task_id IN ?", taskIDs).
		Order("task_members.rowid ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	for _, row := range rows {
		result[row.TaskID] = append(result[row.TaskID], model.MemberView{
			UserID: row.UserID,
			Status: row.Status,
			Name:   row.Name,
		})
	}
	return result, nil
}

// MemberRows returns the raw member rows for a task.
func (r *TaskRepository) MemberRows(ctx context.Context, taskID string) ([]model.TaskMember, error) {
	var members []model.TaskMember
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("rowid ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list member rows: %w", err)
	}
	return members, nil
}

// UpdateMemberStatus writes status to the (task, user) member row and reports how many rows matched.
func (r *TaskRepository) UpdateMemberStatus(ctx context.Context, taskID, userID, status string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.TaskMember{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Update("status", status)
	if res.Error != nil {
		return 0, fmt.Errorf("update member status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountUnfinishedMembers counts member rows of the task whose status is not "done".
func (r *TaskRepository) CountUnfinishedMembers(ctx context.Context, taskID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TaskMember{}).
		Where("task_id = ? AND status <> ?", taskID, model.MemberDone).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count unfinished members: %w", err)
	}
	return n, nil
}

// Complete marks the task Done and, when successor is set, inserts it with its members.
// Both writes share one transaction. It reports false without writing anything when the
// task was already Done, so concurrent completions spawn at most one successor.
func (r *TaskRepository) Complete(ctx context.Context, taskID string, successor *model.Task, members []model.TaskMember) (bool, error) {
	completed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND status <> ?", taskID, model.TaskDone).
			Update("status", model.TaskDone)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		completed = true
		if successor == nil {
			return nil
		}
		return insertTask(tx, successor, members)
	})
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	return completed, nil
}

// Delete removes the task's chat, members and the task itself. Unknown ids are not an error.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", taskID).Delete(&model.Task{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) openAssignments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.TaskMember{}).
		Joins("JOIN tasks ON tasks.id = task_members.task_id").
		Where("tasks.status <> ?", model.TaskDone)
}

// CountPending counts member rows on tasks that are not Done. An empty userID counts everyone.
func (r *TaskRepository) CountPending(ctx context.Context, userID string) (int64, error) {
	q := r.openAssignments(ctx)
	if userID != "" {
		q = q.Where("task_members.user_id = ?", userID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// CountOverdue is CountPending restricted to deadlines strictly before today.
// today must be a UTC midnight, matching how deadlines are stored.
func (r *TaskRepository) CountOverdue(ctx context.Context, userID string, today time.Time) (int64, error) {
	q := r.openAssignments(ctx).Where("tasks.deadline < ?", today)
	if userID != "" {
		q = q.Where("task_members.user_id = ?", userID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}
	return n, nil
}
