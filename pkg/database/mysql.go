package database

import (
	"math/rand"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"shop-assist-go/pkg/log"
)

var DB *gorm.DB

// 连接失败时的有界重试参数。瞬时网络错误用带抖动的退避吸收，
// 重试耗尽才视为致命错误。
const (
	connectRetries   = 5
	connectBaseDelay = 500 * time.Millisecond
)

// InitMySQL 初始化 MySQL 数据库连接。
func InitMySQL(dsn string) {
	var err error
	for attempt := 0; attempt < connectRetries; attempt++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		delay := backoffWithJitter(attempt)
		log.Warnf("MySQL 连接失败 (attempt %d/%d), %v 后重试: %v", attempt+1, connectRetries, delay, err)
		time.Sleep(delay)
	}
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Info("MySQL database connected successfully")
}

// backoffWithJitter 返回第 attempt 次重试前的等待时间：基础延迟指数增长，
// 再叠加 0~100% 的随机抖动，避免多个实例同时重连。
func backoffWithJitter(attempt int) time.Duration {
	base := connectBaseDelay << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(base)))
	return base + jitter
}
