package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

const mysqlPort = "3306"

// MySQLConnector opens targets with the go-sql-driver/mysql driver and pings
// them so that connection failures surface immediately.
type MySQLConnector struct {
	Logger *zap.Logger
}

// Connect implements Connector.
func (c *MySQLConnector) Connect(ctx context.Context, target Target) (*sql.DB, error) {
	cfg, err := c.Config(target)
	if err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	c.logger().Debug("connecting to database",
		zap.String("host", target.Host),
		zap.String("database", target.Database),
		zap.String("user", cfg.User),
	)

	conn := sql.OpenDB(connector)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to %s/%s: %w", target.Host, target.Database, err)
	}
	return conn, nil
}

// Config translates a target into a driver configuration, reading the
// target's defaults file when it carries no explicit credentials.
func (c *MySQLConnector) Config(target Target) (*mysql.Config, error) {
	user, password := target.User, target.Password
	if !target.HasCredentials() {
		if target.DefaultsFile == "" {
			return nil, fmt.Errorf("%s/%s: %w", target.Host, target.Database, ErrNoCredentials)
		}
		var err error
		user, password, err = ReadDefaultsFile(target.DefaultsFile)
		if err != nil {
			return nil, err
		}
	}

	addr := target.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, mysqlPort)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = target.Database
	cfg.User = user
	cfg.Passwd = password
	cfg.Params = make(map[string]string, len(target.Params))
	for k, v := range target.Params {
		cfg.Params[k] = v
	}

	// Round-trip through the DSN so parameters with driver-level meaning
	// (charset, timeouts) land in their dedicated fields.
	parsed, err := mysql.ParseDSN(cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("build DSN for %s: %w", target.Host, err)
	}
	return parsed, nil
}

func (c *MySQLConnector) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// ReadDefaultsFile returns the user and password from the [client] section of
// a MySQL option file such as ~/replica.my.cnf.
func ReadDefaultsFile(path string) (string, string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", "", fmt.Errorf("expand %s: %w", path, err)
	}

	// Values are read whole: passwords may contain ';' and '#'.
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, expanded)
	if err != nil {
		return "", "", fmt.Errorf("read defaults file %s: %w", expanded, err)
	}

	section := file.Section("client")
	user := section.Key("user").String()
	if user == "" {
		return "", "", fmt.Errorf("defaults file %s: %w", expanded, ErrNoCredentials)
	}
	return user, section.Key("password").String(), nil
}
