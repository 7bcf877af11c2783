package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Marketplace/models"
)

// 環境變數前綴，例如 MARKETPLACE_DATABASE_HOST
const envPrefix = "MARKETPLACE"

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

type JWTConfig struct {
	PrivateKeyPath string        `yaml:"privateKeyPath" split_words:"true"`
	PublicKeyPath  string        `yaml:"publicKeyPath" split_words:"true"`
	TokenTTL       time.Duration `yaml:"tokenTTL" split_words:"true"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000"},
		Database: DatabaseConfig{
			Host: "127.0.0.1",
			Port: "3306",
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		JWT: JWTConfig{
			PrivateKeyPath: "jwt/private_key.pem",
			PublicKeyPath:  "jwt/public_key.pem",
			TokenTTL:       24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig 依序套用預設值、YAML設定檔、.env及環境變數
func LoadConfig(filename string) (Config, error) {
	config := defaultConfig()

	file, err := os.Open(filename)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	case errors.Is(err, os.ErrNotExist):
		//沒有設定檔時只使用環境變數
	default:
		return config, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(envPrefix, &config); err != nil {
		return config, fmt.Errorf("process environment: %w", err)
	}

	return config, nil
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// NewGormLogger 將gorm日誌導向logrus
func NewGormLogger(log *logrus.Logger) logger.Interface {
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func SetupMySQLConnection(config DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(config.DSN()), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, err
	}

	if err := models.Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func SetupRedisConnection(config RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.Database,
	})
}

// NewLogger 建立JSON格式的logrus日誌
func NewLogger(config LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.Warnf("Invalid log level '%s', using default: %s", config.Level, level.String())
	}
	log.SetLevel(level)

	return log
}
