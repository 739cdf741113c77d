package database

import (
	"fmt"

	"apex-http-service/internal/domain/models"
	Logger "apex-http-service/pkg/logger"

	"gorm.io/gorm"
)

// 数据库迁移模式
const (
	MigrateAuto  = "auto"  // 只添加新列和新表
	MigrateAlter = "alter" // 修改列类型并删除多余列
	MigrateDrop  = "drop"  // 删除并重建所有表
)

// Migrate 根据模式迁移所有模型
func Migrate(db *gorm.DB, mode string) error {
	switch mode {
	case MigrateDrop:
		Logger.Warning("警告: 在drop模式下运行，将删除并重建所有表")
		return dropAndRecreateTables(db)
	case MigrateAlter:
		Logger.Info("在alter模式下运行，将修改表结构以匹配模型")
		return advancedMigrate(db)
	case MigrateAuto, "":
		Logger.Info("在标准模式下运行，将只添加新列和新表")
		return autoMigrate(db)
	default:
		return fmt.Errorf("unknown migration mode %q", mode)
	}
}

// autoMigrate 自动迁移所有模型（只添加新列和新表）
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	Logger.Info("Database migration completed")
	return nil
}

// advancedMigrate 先执行AutoMigrate，再同步列定义并删除模型中不存在的列
func advancedMigrate(db *gorm.DB) error {
	if err := autoMigrate(db); err != nil {
		return err
	}

	migrator := db.Migrator()
	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}

		modelColumns := make(map[string]bool, len(stmt.Schema.DBNames))
		for _, name := range stmt.Schema.DBNames {
			modelColumns[name] = true
		}

		columnTypes, err := migrator.ColumnTypes(model)
		if err != nil {
			return fmt.Errorf("read columns of %s: %w", stmt.Schema.Table, err)
		}
		for _, col := range columnTypes {
			if modelColumns[col.Name()] {
				continue
			}
			Logger.Warning("在%s表中发现多余列: %s，准备删除", stmt.Schema.Table, col.Name())
			if err := migrator.DropColumn(model, col.Name()); err != nil {
				Logger.Error("删除列失败: %v", err)
			}
		}

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || field.PrimaryKey {
				continue
			}
			if err := migrator.AlterColumn(model, field.Name); err != nil {
				Logger.Error("修改列 %s.%s 失败: %v", stmt.Schema.Table, field.DBName, err)
			}
		}
	}
	return nil
}

// dropAndRecreateTables 删除并重建所有表
func dropAndRecreateTables(db *gorm.DB) error {
	all := models.All()
	// 倒序删除，先删除依赖方
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return autoMigrate(db)
}
