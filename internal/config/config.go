// Package config loads dbcalm's runtime configuration from environment
// variables and an optional YAML file, with command-line flags taking final
// precedence. All three services (the server, dbcmd-server and syscmd-server
// subcommands) share this loader.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting any dbcalm binary might need. Each binary only
// reads the fields relevant to it; unused fields are harmless.
type Config struct {
	Project string `mapstructure:"project"`

	LogLevel string `mapstructure:"log_level"`
	DevMode  bool   `mapstructure:"dev_mode"`

	HTTPAddr string `mapstructure:"http_addr"`

	StateDir    string `mapstructure:"state_dir"`
	BackupDir   string `mapstructure:"backup_dir"`
	DataDir     string `mapstructure:"data_dir"`
	CredsFile   string `mapstructure:"credentials_file"`
	CronDir     string `mapstructure:"cron_dir"`
	BackupBin   string `mapstructure:"backup_bin"`
	AdminBin    string `mapstructure:"admin_bin"`
	MariaDBBin  string `mapstructure:"mariadb_admin_bin"`
	MySQLAdmBin string `mapstructure:"mysql_admin_bin"`

	DBCmdSocket string `mapstructure:"dbcmd_socket"`
	SysCmdSocket string `mapstructure:"syscmd_socket"`

	JWTSecret string `mapstructure:"jwt_secret"`

	SocketTimeoutDev  time.Duration `mapstructure:"-"`
	SocketTimeoutProd time.Duration `mapstructure:"-"`
}

// Default returns a Config populated with dbcalm's defaults, suitable as the
// base layer before environment and file overrides are applied.
func Default() Config {
	return Config{
		Project:           "dbcalm",
		LogLevel:          "info",
		HTTPAddr:          ":8443",
		StateDir:          "/var/lib/dbcalm",
		BackupDir:         "/var/backups/dbcalm",
		DataDir:           "/var/lib/mysql",
		CredsFile:         "/etc/dbcalm/dbcalm.cnf",
		CronDir:           "/etc/cron.d",
		BackupBin:         "mariabackup",
		AdminBin:          "mariadb-admin",
		MariaDBBin:        "mariadb-admin",
		MySQLAdmBin:       "mysqladmin",
		DBCmdSocket:       "/var/run/dbcalm/dbcalm.cmd.sock",
		SysCmdSocket:      "/var/run/dbcalm/dbcalm.system.sock",
		SocketTimeoutDev:  60 * time.Second,
		SocketTimeoutProd: 5 * time.Second,
	}
}

// Load reads configuration from (in increasing precedence order) built-in
// defaults, an optional YAML file at configPath (ignored if empty or
// missing), and DBCALM_*-prefixed environment variables.
//
// The caller is expected to apply any cobra flag overrides on top of the
// returned Config afterwards — flags always win.
func Load(configPath string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("project", def.Project)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("state_dir", def.StateDir)
	v.SetDefault("backup_dir", def.BackupDir)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("credentials_file", def.CredsFile)
	v.SetDefault("cron_dir", def.CronDir)
	v.SetDefault("backup_bin", def.BackupBin)
	v.SetDefault("admin_bin", def.AdminBin)
	v.SetDefault("mariadb_admin_bin", def.MariaDBBin)
	v.SetDefault("mysql_admin_bin", def.MySQLAdmBin)
	v.SetDefault("dbcmd_socket", def.DBCmdSocket)
	v.SetDefault("syscmd_socket", def.SysCmdSocket)

	v.SetEnvPrefix("dbcalm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.DevMode = v.GetBool("dev_mode")
	cfg.JWTSecret = v.GetString("jwt_secret")

	cfg.SocketTimeoutDev = def.SocketTimeoutDev
	cfg.SocketTimeoutProd = def.SocketTimeoutProd

	return cfg, nil
}

// SocketTimeout returns the client-side command-bus timeout appropriate for
// the current mode: a generous window in dev, a tight one in production —
// mirrors the <PROJECT>_DEV_MODE environment toggle from the spec.
func (c Config) SocketTimeout() time.Duration {
	if c.DevMode {
		return c.SocketTimeoutDev
	}
	return c.SocketTimeoutProd
}
