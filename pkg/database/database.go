package database

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 唯一索引冲突翻译成 gorm.ErrDuplicatedKey，幂等创建路径依赖它
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}

// Migrate 表结构迁移，测试里也用它初始化 sqlite 内存库
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseModule{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizOption{},
		&model.Payment{},
		&model.WebhookEvent{},
		&model.Enrollment{},
		&model.ModuleProgress{},
		&model.QuizAttempt{},
		&model.QuizAttemptAnswer{},
		&model.MilestoneAward{},
		&model.Certificate{},
		&model.Affiliate{},
		&model.AffiliateConversion{},
	)
}
