package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"study-room/internal/domain"
)

// MigrateDB 自动迁移所有表，并创建依赖数据库方言的索引。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.List{},
		&domain.Task{},
		&domain.Permission{},
		&domain.Room{},
		&domain.RoomParticipant{},
		&domain.Membership{},
		&domain.MembershipRecord{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	if err := createActiveMembershipIndex(db); err != nil {
		return err
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// createActiveMembershipIndex 在支持部分索引的数据库上保证每个用户至多一条活跃成员资格。
// MySQL 不支持部分索引，只依赖事务内的用户行锁。
func createActiveMembershipIndex(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "postgres", "sqlite":
	default:
		logrus.Infof("Dialect %s has no partial indexes, skipping active membership index", db.Dialector.Name())
		return nil
	}
	sql := `CREATE UNIQUE INDEX IF NOT EXISTS idx_session_users_active_user ON session_users (user_id) WHERE left_at IS NULL`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create active membership index: %v", err)
		return fmt.Errorf("failed to create active membership index: %w", err)
	}
	return nil
}
