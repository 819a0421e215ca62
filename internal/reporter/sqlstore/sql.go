// Package sqlstore 将基准记录写入 MySQL 或 PostgreSQL。
package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	// DefaultTable 默认表名
	DefaultTable = "benchmark_results"
)

// Config 数据库配置
type Config struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"` // 设置后忽略下面的连接字段
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	Table           string `yaml:"table"`
	AutoMigrate     bool   `yaml:"auto_migrate"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 秒
}

// ConfigFromMap 从通用配置读取数据库配置
func ConfigFromMap(config map[string]any) *Config {
	cfg := &Config{Driver: DriverMySQL, Charset: "utf8mb4", Table: DefaultTable, AutoMigrate: true}
	str := func(key string, dst *string) {
		if v, ok := config[key].(string); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		switch v := config[key].(type) {
		case int:
			*dst = v
		case int64:
			*dst = int(v)
		case float64:
			*dst = int(v)
		}
	}
	str("driver", &cfg.Driver)
	str("dsn", &cfg.DSN)
	str("host", &cfg.Host)
	num("port", &cfg.Port)
	str("username", &cfg.Username)
	str("password", &cfg.Password)
	str("database", &cfg.Database)
	str("charset", &cfg.Charset)
	str("table", &cfg.Table)
	num("max_idle_conns", &cfg.MaxIdleConns)
	num("max_open_conns", &cfg.MaxOpenConns)
	num("conn_max_lifetime", &cfg.ConnMaxLifetime)
	if v, ok := config["auto_migrate"].(bool); ok {
		cfg.AutoMigrate = v
	}
	return cfg
}

// Dialector 根据配置构造 gorm 方言
func Dialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			charset := cfg.Charset
			if charset == "" {
				charset = "utf8mb4"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
				cfg.Username,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.Database,
				charset,
			)
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Host,
				cfg.Port,
				cfg.Username,
				cfg.Password,
				cfg.Database,
			)
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Row 基准记录表结构，同一次运行的记录共享 RunID
type Row struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"column:run_id;size:36;index"`
	CreatedAt time.Time `gorm:"column:created_at"`

	types.BenchmarkRecord `gorm:"embedded"`
}

// Reporter 数据库报告器
type Reporter struct {
	config *Config
	db     *gorm.DB
	owned  bool // 连接由 Init 打开，Close 时关闭
	runID  string
	mu     sync.Mutex
}

// New 创建数据库报告器，连接在 Init 时建立
func New(config *Config) *Reporter {
	if config.Table == "" {
		config.Table = DefaultTable
	}
	return &Reporter{config: config, runID: uuid.NewString()}
}

// NewWithDB 使用已有连接创建报告器
func NewWithDB(db *gorm.DB, table string, migrate bool) *Reporter {
	if table == "" {
		table = DefaultTable
	}
	return &Reporter{
		config: &Config{Table: table, AutoMigrate: migrate},
		db:     db,
		runID:  uuid.NewString(),
	}
}

// Name 返回报告器名称
func (r *Reporter) Name() string {
	return "sql"
}

// RunID 返回本次运行的标识
func (r *Reporter) RunID() string {
	return r.runID
}

// Init 建立连接并按需迁移表结构
func (r *Reporter) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		dialector, err := Dialector(r.config)
		if err != nil {
			return err
		}
		db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.NewGormLogger(
			zap.String("table", r.config.Table),
			zap.String("run_id", r.runID),
		)})
		if err != nil {
			return fmt.Errorf("连接数据库失败: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		// 设置连接池参数
		if r.config.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(r.config.MaxIdleConns)
		}
		if r.config.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(r.config.MaxOpenConns)
		}
		if r.config.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(r.config.ConnMaxLifetime) * time.Second)
		}
		r.db = db
		r.owned = true
	}

	if r.config.AutoMigrate {
		if err := r.table(ctx).AutoMigrate(&Row{}); err != nil {
			return fmt.Errorf("迁移表 %s 失败: %w", r.config.Table, err)
		}
	}
	return nil
}

// Write 插入一条记录
func (r *Reporter) Write(record types.BenchmarkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return fmt.Errorf("报告器未初始化")
	}
	row := &Row{RunID: r.runID, BenchmarkRecord: record}
	if err := r.table(context.Background()).Create(row).Error; err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}

// Flush 记录逐条写入，无需刷新
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

// Close 关闭由 Init 打开的连接
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil || !r.owned {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	r.db = nil
	return sqlDB.Close()
}

func (r *Reporter) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.config.Table)
}
