package config

import (
	"flag"
	"os"
	"time"

	"github.com/maildrift/maildrift/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   server base URL
//	-f string   SQLite cache file path
//	-u string   login email
//	-p string   login password
//	-i int      sync interval, seconds
//
// Args are pre-filtered with flagx.FilterArgs so flags owned by other
// components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-f", "-u", "-p", "-i"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	fs.StringVar(&config.ServerURL, "s", config.ServerURL, "sync server base URL")
	fs.StringVar(&config.DatabasePath, "f", config.DatabasePath, "local cache file path")
	fs.StringVar(&config.Email, "u", config.Email, "login email")
	fs.StringVar(&config.Password, "p", config.Password, "login password")

	intervalSeconds := fs.Int("i", int(config.SyncInterval.Seconds()), "sync interval (seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SyncInterval = time.Duration(*intervalSeconds) * time.Second
}
