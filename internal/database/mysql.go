package database

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := mysqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
}

// mysqlDSN formats connection settings through the driver's own config type. Times are
// parsed into UTC to match what the services write.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := mysqldriver.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	driverCfg := mysqldriver.NewConfig()
	driverCfg.User = cfg.User
	driverCfg.Passwd = cfg.Password
	driverCfg.Net = "tcp"
	driverCfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	driverCfg.DBName = cfg.Name
	driverCfg.ParseTime = true
	driverCfg.Loc = time.UTC
	driverCfg.Params = map[string]string{"charset": "utf8mb4"}
	for key, value := range cfg.Options {
		driverCfg.Params[key] = value
	}

	return driverCfg.FormatDSN(), nil
}
