package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// MaxPageSize 分页上限
const MaxPageSize = 100

// DefaultPageSize size<=0 时的分页大小
const DefaultPageSize = 20

// NormalizePage 把分页参数收敛到合法范围；page 上限保证 offset+limit 不溢出
func NormalizePage(page, size int) (int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	if page < 0 {
		page = 0
	}
	return min(page, math.MaxInt/size-1), size
}

// AutoMigrate 按模型建表，生产环境使用 internal/migration
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&PostTask{}, &PostTaskResult{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// =============================================================================
// 📋 TaskRepository
// =============================================================================

// TaskRepository post_tasks 读写
type TaskRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

// Create 插入任务，缺省字段补齐为 PENDING / hackernews / now
func (r *TaskRepository) Create(ctx context.Context, task *PostTask) error {
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.TargetOrigin == "" {
		task.TargetOrigin = DefaultTargetOrigin
	}
	if task.CreateTime.IsZero() {
		task.CreateTime = r.now()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID 按 ID 查询
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*PostTask, error) {
	var task PostTask
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find task %d: %w", id, err)
	}
	return &task, nil
}

// FindPage 按创建时间倒序分页，page 从 0 开始；返回总数
func (r *TaskRepository) FindPage(ctx context.Context, page, size int) ([]PostTask, int64, error) {
	page, size = NormalizePage(page, size)

	var total int64
	if err := r.db.WithContext(ctx).Model(&PostTask{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	tasks := make([]PostTask, 0, size)
	err := r.db.WithContext(ctx).
		Order("create_time DESC").Order("id DESC").
		Offset(page * size).Limit(size).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// FindByStatus 按 ID 升序返回指定状态的任务，limit<=0 不限制
func (r *TaskRepository) FindByStatus(ctx context.Context, status TaskStatus, limit int) ([]PostTask, error) {
	q := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []PostTask
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks by status: %w", err)
	}
	return tasks, nil
}

// UpdateStatus 更新任务状态
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status TaskStatus, updateBy string) error {
	res := r.db.WithContext(ctx).Model(&PostTask{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "update_by": updateBy})
	if res.Error != nil {
		return fmt.Errorf("update task %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// =============================================================================
// 📦 ResultRepository
// =============================================================================

// ResultRepository task_results 读写
type ResultRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewResultRepository 创建结果仓储
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db, now: time.Now}
}

// Create 插入结果；data_id 重复时返回底层唯一约束错误
func (r *ResultRepository) Create(ctx context.Context, result *PostTaskResult) error {
	r.fill(result)
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("create result for data %d: %w", result.DataID, err)
	}
	return nil
}

// Upsert 以 data_id 为键插入或更新
func (r *ResultRepository) Upsert(ctx context.Context, result *PostTaskResult) error {
	r.fill(result)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "data_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"task_id", "status", "output_directory", "description"}),
	}).Create(result).Error
	if err != nil {
		return fmt.Errorf("upsert result for data %d: %w", result.DataID, err)
	}
	return nil
}

// FindByDataID 按帖子 ID 查询
func (r *ResultRepository) FindByDataID(ctx context.Context, dataID int64) (*PostTaskResult, error) {
	var result PostTaskResult
	if err := r.db.WithContext(ctx).Where("data_id = ?", dataID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("result for data %d: %w", dataID, ErrNotFound)
		}
		return nil, fmt.Errorf("find result for data %d: %w", dataID, err)
	}
	return &result, nil
}

// ExistsByDataID 报告帖子是否已处理
func (r *ResultRepository) ExistsByDataID(ctx context.Context, dataID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&PostTaskResult{}).Where("data_id = ?", dataID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check result for data %d: %w", dataID, err)
	}
	return count > 0, nil
}

// FindByTaskID 返回任务产生的所有结果
func (r *ResultRepository) FindByTaskID(ctx context.Context, taskID int64) ([]PostTaskResult, error) {
	var results []PostTaskResult
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id ASC").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("find results for task %d: %w", taskID, err)
	}
	return results, nil
}

func (r *ResultRepository) fill(result *PostTaskResult) {
	if result.Status == "" {
		result.Status = StatusPending
	}
	if result.CreateTime.IsZero() {
		result.CreateTime = r.now()
	}
}
