package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Open 按配置打开数据库并迁移账本表。driver 为 memory 时返回 nil
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database dir: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	case "memory":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 禁用 GORM 的默认日志输出
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// migrations 账本表结构版本，只追加不修改
var migrations = []*gormigrate.Migration{
	{
		ID: "202610190001_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&model.EventModel{},
				&model.ProjectModel{},
				&model.ContributeRecordModel{},
				&model.MilestoneRequestModel{},
				&model.VoteRecordModel{},
				&model.SettlementRecordModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&model.SettlementRecordModel{},
				&model.VoteRecordModel{},
				&model.MilestoneRequestModel{},
				&model.ContributeRecordModel{},
				&model.ProjectModel{},
				&model.EventModel{},
			)
		},
	},
	{
		// 广播前持久化已签名交易
		ID: "202610200001_settlement_broadcast",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&model.SettlementRecordModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			for _, column := range []string{"nonce", "raw_tx"} {
				if err := tx.Migrator().DropColumn(&model.SettlementRecordModel{}, column); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate 执行未应用的迁移
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations)
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
