package export

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/leapseed/internal/model"
)

func init() {
	Register("mysql", func(logger *slog.Logger) Exporter { return NewMySQL(logger) })
}

// MySQLDialect is the MySQL column mapping.
var MySQLDialect = &Dialect{
	Name:        "mysql",
	Placeholder: squirrel.Question,
	Quote:       "`",
	Types: map[model.FieldType]string{
		model.TypeText:     "TEXT",
		model.TypeInteger:  "BIGINT",
		model.TypeNumber:   "DECIMAL(20,6)",
		model.TypeFloat:    "DOUBLE",
		model.TypeBoolean:  "BOOLEAN",
		model.TypeUUID:     "CHAR(36)",
		model.TypeDate:     "DATE",
		model.TypeDatetime: "DATETIME",
		model.TypeJSON:     "JSON",
	},
	TextType: "VARCHAR(255)",
}

// MySQLExporter writes to a MySQL database.
type MySQLExporter struct {
	BaseSQLExporter
}

// NewMySQL creates a MySQL exporter.
func NewMySQL(logger *slog.Logger) *MySQLExporter {
	return &MySQLExporter{BaseSQLExporter: newBase(MySQLDialect, logger)}
}

// Open connects to MySQL over TCP.
func (e *MySQLExporter) Open(ctx context.Context, cfg Config) error {
	e.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	if err := e.Connect(ctx, "mysql", buildMySQLDSN(cfg), cfg); err != nil {
		return err
	}
	e.DB.SetMaxOpenConns(2)
	e.DB.SetConnMaxLifetime(15 * time.Minute)
	return nil
}

// buildMySQLDSN constructs a go-sql-driver DSN.
func buildMySQLDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	if tls, ok := cfg.Options["tls"]; ok {
		mc.TLSConfig = tls
	}
	return mc.FormatDSN()
}
