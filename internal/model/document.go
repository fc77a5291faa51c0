// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Document 定义了 documents 表的 ORM 模型。
// 每一行代表一份已完成向量化的文档，Namespace 与文档身份（URL 或内容校验和）一一对应。
type Document struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	URL        string    `gorm:"type:text" json:"url,omitempty"`
	Checksum   string    `gorm:"type:varchar(64);index" json:"checksum,omitempty"`
	FileName   string    `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	Namespace  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"namespace"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	ArchiveKey string    `gorm:"type:varchar(512)" json:"archiveKey,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	Queries    []Query   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// Query 定义了 queries 表的 ORM 模型，记录每个问题及其回答。
type Query struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"documentId"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Query) TableName() string {
	return "queries"
}
