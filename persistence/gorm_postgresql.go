// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/atlas/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormSnapshotStore 使用GORM的PostgreSQL快照存储
type GormSnapshotStore struct {
	db *gorm.DB
}

// NewGormSnapshotStore 创建GORM PostgreSQL数据库连接
func NewGormSnapshotStore(dsn string) (*GormSnapshotStore, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRoomSnapshot{}); err != nil {
		return nil, err
	}

	return &GormSnapshotStore{db: db}, nil
}

// SaveRoom 按 room_id upsert，旧版本不会覆盖新版本
func (p *GormSnapshotStore) SaveRoom(ctx context.Context, snap models.RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	row := models.GormRoomSnapshot{
		RoomID:       snap.ID,
		JoinCode:     snap.JoinCode,
		Stage:        string(snap.Stage),
		Version:      snap.Version,
		Data:         data,
		LastActivity: snap.LastActivity,
	}

	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"join_code", "stage", "version", "data", "last_activity", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "room_snapshots.version <= EXCLUDED.version"},
		}},
	}).Create(&row).Error
}

// LoadRoom 加载房间快照
func (p *GormSnapshotStore) LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	var snap models.RoomSnapshot
	var row models.GormRoomSnapshot
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return snap, ErrRecordNotFound
		}
		return snap, err
	}

	if err := json.Unmarshal(row.Data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", roomID, err)
	}
	return snap, nil
}

var _ StageLister = (*GormSnapshotStore)(nil)

// RoomsByStage 按阶段列出最近活跃的房间快照
func (p *GormSnapshotStore) RoomsByStage(ctx context.Context, stage models.Stage, limit int) ([]models.GormRoomSnapshot, error) {
	var rows []models.GormRoomSnapshot
	err := p.db.WithContext(ctx).
		Where("stage = ?", string(stage)).
		Order("last_activity DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Close 关闭数据库连接
func (p *GormSnapshotStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
