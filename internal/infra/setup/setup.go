package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/JojayD/codecanvas-sub000/internal/domain"
)

// InitDB opens the MySQL connection and tunes the pool.
func InitDB(user, password, host, port, name string) (*gorm.DB, error) {
	if user == "" || password == "" {
		return nil, fmt.Errorf("database user and password must be set")
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3306"
	}
	if name == "" {
		name = "codecanvas"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, name)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// MigrateDB applies the schema for all persisted models.
func MigrateDB(db *gorm.DB) error {
	err := db.AutoMigrate(&domain.User{}, &domain.Room{}, &domain.Whiteboard{})
	if err != nil {
		return fmt.Errorf("auto-migrate schema: %w", err)
	}
	return nil
}

// InitRedis connects and pings the redis instance backing the change
// feed, host hints, rate limiting and the asynq queues.
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address must be set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}
