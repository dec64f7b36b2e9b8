// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/atlas/models"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// PostgresSnapshotStore database/sql + lib/pq 的快照存储
type PostgresSnapshotStore struct {
	db *sql.DB
}

// NewPostgresSnapshotStore 创建 PostgreSQL 数据库连接
func NewPostgresSnapshotStore(dsn string) (*PostgresSnapshotStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresSnapshotStore{db: db}, nil
}

// initTables 初始化数据库表结构，和 GORM 模型保持同一张表
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS room_snapshots (
            id BIGSERIAL PRIMARY KEY,
            room_id TEXT UNIQUE NOT NULL,
            join_code TEXT NOT NULL,
            stage TEXT NOT NULL,
            version BIGINT NOT NULL,
            data JSONB NOT NULL,
            last_activity TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_room_snapshots_join_code ON room_snapshots(join_code)`)
	return err
}

// SaveRoom 保存房间快照
func (p *PostgresSnapshotStore) SaveRoom(ctx context.Context, snap models.RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO room_snapshots (room_id, join_code, stage, version, data, last_activity, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
        ON CONFLICT (room_id)
        DO UPDATE SET join_code = $2, stage = $3, version = $4, data = $5,
            last_activity = $6, updated_at = CURRENT_TIMESTAMP
        WHERE room_snapshots.version <= EXCLUDED.version
    `, snap.ID, snap.JoinCode, string(snap.Stage), snap.Version, string(data), snap.LastActivity)
	return err
}

// LoadRoom 加载房间快照
func (p *PostgresSnapshotStore) LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	var snap models.RoomSnapshot
	var data []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT data FROM room_snapshots WHERE room_id = $1",
		roomID,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrRecordNotFound
	}
	if err != nil {
		return snap, err
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", roomID, err)
	}
	return snap, nil
}

// Close 关闭数据库连接
func (p *PostgresSnapshotStore) Close() error {
	return p.db.Close()
}
