package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 服务配置，对应 config.xml
type Config struct {
	XMLName    xml.Name `xml:"config"`
	MainRouter string   `xml:"MainRouter"` // HTTP 监听地址
	DBType     string   `xml:"dbtype"`     // postgres | sqlite
	Dbname     string   `xml:"dbname"`
	Host       string   `xml:"host"`
	Port       string   `xml:"port"`
	Username   string   `xml:"user"`
	Password   string   `xml:"password"`
	SQLitePath string   `xml:"sqlitepath"`

	MaxOpenConns       int `xml:"maxopenconns"`
	MaxIdleConns       int `xml:"maxidleconns"`
	StatementTimeoutMs int `xml:"statementtimeout"`

	RedisAddr       string `xml:"redisaddr"`
	RedisPassword   string `xml:"redispassword"`
	RedisDB         int    `xml:"redisdb"`
	CacheTTLSeconds int    `xml:"cachettl"`

	LogLevel  string `xml:"loglevel"`
	LogFormat string `xml:"logformat"`
}

// Default 默认配置
func Default() Config {
	return Config{
		MainRouter:         ":8426",
		DBType:             "postgres",
		Dbname:             "sectormap",
		Host:               "localhost",
		Port:               "5432",
		Username:           "postgres",
		SQLitePath:         "sectormap.db",
		MaxOpenConns:       50,
		MaxIdleConns:       25,
		StatementTimeoutMs: 30000,
		CacheTTLSeconds:    300,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load 读取 xml 配置文件，文件不存在时使用默认值；随后用 .env 与环境变量覆盖
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		xmlFile, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("open config %s: %w", path, err)
		default:
			defer xmlFile.Close()
			if err := xml.NewDecoder(xmlFile).Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"SECTORMAP_ADDR":        &c.MainRouter,
		"SECTORMAP_DB_TYPE":     &c.DBType,
		"PG_DB":                 &c.Dbname,
		"PG_HOST":               &c.Host,
		"PG_PORT":               &c.Port,
		"PG_USER":               &c.Username,
		"PG_PASSWORD":           &c.Password,
		"SECTORMAP_SQLITE_PATH": &c.SQLitePath,
		"REDIS_ADDR":            &c.RedisAddr,
		"REDIS_PASSWORD":        &c.RedisPassword,
		"LOG_LEVEL":             &c.LogLevel,
		"LOG_FORMAT":            &c.LogFormat,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	num := map[string]*int{
		"PG_MAX_OPEN_CONNS":       &c.MaxOpenConns,
		"PG_MAX_IDLE_CONNS":       &c.MaxIdleConns,
		"PG_STATEMENT_TIMEOUT_MS": &c.StatementTimeoutMs,
		"REDIS_DB":                &c.RedisDB,
		"SECTORMAP_CACHE_TTL":     &c.CacheTTLSeconds,
	}
	for key, dst := range num {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s env variable: %q", key, v)
		}
		*dst = n
	}
	return nil
}

// Validate 校验配置
func (c Config) Validate() error {
	switch strings.ToLower(c.DBType) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported dbtype %q", c.DBType)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.StatementTimeoutMs < 0 || c.CacheTTLSeconds < 0 {
		return errors.New("pool sizes, timeouts and ttl must not be negative")
	}
	return nil
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue 关键字/值格式中的取值加引号，空格与引号不会截断连接串
func dsnValue(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// DSN PostgreSQL 连接串；statement_timeout 作为运行时参数下发
func (c Config) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dsnValue(c.Host), dsnValue(c.Username), dsnValue(c.Password), dsnValue(c.Dbname), dsnValue(c.Port))
	if c.StatementTimeoutMs > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", c.StatementTimeoutMs)
	}
	return dsn
}
