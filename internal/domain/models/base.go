package models

import "time"

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaginationQuery struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize 修正分页参数：page 从1开始，page_size 不超过 MaxPageSize
func (q *PaginationQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

// Offset 返回查询偏移量
func (q PaginationQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
