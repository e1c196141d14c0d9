package config

import (
	"flag"
	"fmt"
	"io"
)

type flags struct {
	set        *flag.FlagSet
	configPath string
	envPath    string

	addr       string
	driver     string
	dsn        string
	adminEmail string
	logPath    string
}

func newFlags(usage io.Writer) *flags {
	f := &flags{set: flag.NewFlagSet("stocktaker", flag.ContinueOnError)}
	fs := f.set
	fs.SetOutput(usage)

	fs.StringVar(&f.configPath, "config", "", "")
	fs.StringVar(&f.configPath, "c", "", "")
	fs.StringVar(&f.envPath, "env", ".env", "")
	fs.StringVar(&f.envPath, "e", ".env", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.driver, "driver", "", "")
	fs.StringVar(&f.dsn, "db", "", "")
	fs.StringVar(&f.dsn, "d", "", "")
	fs.StringVar(&f.adminEmail, "admin", "", "")
	fs.StringVar(&f.adminEmail, "u", "", "")
	fs.StringVar(&f.logPath, "log", "", "")
	fs.StringVar(&f.logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(usage, `Usage: stocktaker [flags]

Flags:
  -c, -config <path>      YAML config file
  -e, -env <path>         dotenv file (default: .env)
  -a, -addr <host:port>   listen address (default: :8080)
      -driver <name>      database driver: sqlite or pgx (default: sqlite)
  -d, -db <dsn>           database path or connection string (default: stocktaker.sqlite3)
  -u, -admin <email>      admin email on first run (default: admin@localhost)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as a STOCKTAKER_* environment variable.
`)
	}
	return f
}

// apply copies flags that were given explicitly onto cfg.
func (f *flags) apply(cfg *Config) {
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr", "a":
			cfg.Addr = f.addr
		case "driver":
			cfg.Database.Driver = f.driver
		case "db", "d":
			cfg.Database.DSN = f.dsn
		case "admin", "u":
			cfg.AdminEmail = f.adminEmail
		case "log", "l":
			cfg.LogPath = f.logPath
		}
	})
}
