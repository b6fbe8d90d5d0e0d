package repository

import "time"

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusRunning TaskStatus = "RUNNING"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailed  TaskStatus = "FAILED"
)

// Valid 报告状态是否为已知值
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// DefaultTargetOrigin 未指定参考源时使用
const DefaultTargetOrigin = "hackernews"

// PostTask 发帖任务
type PostTask struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskName     string     `gorm:"size:255;not null" json:"task_name"`
	Status       TaskStatus `gorm:"size:32;not null;default:PENDING;index" json:"status"`
	TargetOrigin string     `gorm:"size:64;not null;default:hackernews" json:"target_origin"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	CreateTime   time.Time  `gorm:"not null;index" json:"create_time"`
	UpdateBy     string     `gorm:"size:64" json:"update_by,omitempty"`
}

func (PostTask) TableName() string { return "post_tasks" }

// PostTaskResult 单个帖子的处理结果
type PostTaskResult struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID          int64      `gorm:"not null;index" json:"task_id"`
	DataID          int64      `gorm:"not null;uniqueIndex:uq_task_results_data_id" json:"data_id"`
	Status          TaskStatus `gorm:"size:32;not null;default:PENDING" json:"status"`
	OutputDirectory string     `gorm:"size:512" json:"output_directory,omitempty"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	CreateTime      time.Time  `gorm:"not null" json:"create_time"`
}

func (PostTaskResult) TableName() string { return "task_results" }

// ResultDescription 结果描述："<标题> 帖子url= <链接>"
func ResultDescription(title, url string) string {
	return title + " 帖子url= " + url
}
