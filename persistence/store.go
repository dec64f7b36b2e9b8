// persistence/store.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/atlas/models"
)

// SnapshotStore 房间快照的导出存储，只写不读回内存，供离线排查使用
type SnapshotStore interface {
	SaveRoom(ctx context.Context, snap models.RoomSnapshot) error
	LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error)
	Close() error
}

// StageLister 可以按阶段查询已导出快照的存储（目前只有 gorm 实现）
type StageLister interface {
	RoomsByStage(ctx context.Context, stage models.Stage, limit int) ([]models.GormRoomSnapshot, error)
}

// 错误定义
var (
	ErrRecordNotFound   = fmt.Errorf("record not found")
	ErrStageUnsupported = fmt.Errorf("snapshot store cannot list by stage")
)

// PostgresDSN 拼接 lib/pq 和 gorm 通用的连接串
func PostgresDSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// NopSnapshotStore 关闭快照导出时使用
type NopSnapshotStore struct{}

func (NopSnapshotStore) SaveRoom(ctx context.Context, snap models.RoomSnapshot) error { return nil }

func (NopSnapshotStore) LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	return models.RoomSnapshot{}, ErrRecordNotFound
}

func (NopSnapshotStore) Close() error { return nil }

// Open 按驱动名创建快照存储: file, gorm, postgres, none
func Open(driver, dir, dsn string) (SnapshotStore, error) {
	switch driver {
	case "", "none":
		return NopSnapshotStore{}, nil
	case "file":
		return NewFileSnapshotStore(dir)
	case "gorm":
		return NewGormSnapshotStore(dsn)
	case "postgres":
		return NewPostgresSnapshotStore(dsn)
	}
	return nil, fmt.Errorf("unknown snapshot driver %q", driver)
}
