package config

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global handle. Used by tools and tests that open their own connection.
func SetDB(d *gorm.DB) {
	db = d
}

// init only loads .env; connecting waits for main so the port opens first.
func init() {
	_ = godotenv.Load()
}

// dsnFromEnv builds the MySQL DSN. DB_HOST=/cloudsql/<CONNECTION_NAME> dials the proxy's unix socket.
// DB_TIMEZONE sets the driver's loc (default Local).
func dsnFromEnv() string {
	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	network, address := "tcp", fmt.Sprintf("%s:%s", host, strings.TrimSpace(os.Getenv("DB_PORT")))
	if strings.HasPrefix(host, "/cloudsql/") {
		network, address = "unix", host
	}
	loc := strings.TrimSpace(os.Getenv("DB_TIMEZONE"))
	if loc == "" {
		loc = "Local"
	}
	// transaction_isolation is sent as a session variable on every pooled connection
	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4&transaction_isolation=%%27READ-COMMITTED%%27&loc=%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		network,
		address,
		os.Getenv("DB_NAME"),
		url.QueryEscape(loc),
	)
}

// poolSettings reads DB_MAX_OPEN_CONNS (50), DB_MAX_IDLE_CONNS (25),
// DB_CONN_MAX_LIFETIME_SECONDS (300) and DB_CONN_MAX_IDLE_TIME_SECONDS (60).
type poolSettings struct {
	maxOpen, maxIdle      int
	maxLifetime, maxIdleT time.Duration
}

func poolSettingsFromEnv() poolSettings {
	return poolSettings{
		maxOpen:     IntFromEnv("DB_MAX_OPEN_CONNS", 50),
		maxIdle:     IntFromEnv("DB_MAX_IDLE_CONNS", 25),
		maxLifetime: time.Duration(IntFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		maxIdleT:    time.Duration(IntFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
	}
}

func (p poolSettings) apply(sqlDB *sql.DB) {
	if p.maxOpen > 0 {
		sqlDB.SetMaxOpenConns(p.maxOpen)
	}
	if p.maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(p.maxIdle)
	}
	if p.maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.maxLifetime)
	}
	if p.maxIdleT > 0 {
		sqlDB.SetConnMaxIdleTime(p.maxIdleT)
	}
}

// ConnectDatabaseWithRetry blocks until MySQL answers, then installs the tracing and
// location guard plugins. Call it from main() after the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := dsnFromEnv()
	for attempt := 1; ; attempt++ {
		conn, err := gorm.Open(mysql.Open(dsn), initConfig())
		if err == nil {
			if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
				poolSettingsFromEnv().apply(sqlDB)
			}
			if pluginErr := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(os.Getenv("DB_NAME")))); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := conn.Use(NewLocationGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install location guard plugin: %v", pluginErr)
			}
			db = conn
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := RetryBackoff(attempt)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// RetryBackoff is the exponential connect backoff shared by every dependency, capped at 30s.
func RetryBackoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

// Table names are explicit where they differ from gorm's plural snake case (bills_gst, state_gst_master).
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{SingularTable: false}
}
