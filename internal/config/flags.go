package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/mkalvis/stockvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-l string   local SQLite database file
//	-d string   PostgreSQL DSN for the remote mirror
//	-u string   S3 access key
//	-p string   S3 secret key
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t string   backup times of day, comma-separated ("09:00,21:00")
//	-r int      retention age, days
//	-w int      per-call timeout, seconds
//	-i int      connectivity check interval, seconds
//	-n string   product name used in export file names
//	-x string   export directory
//	-z bool     disable snapshot compression
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with flags owned by other components.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-l", "-d", "-u", "-p", "-g", "-e", "-t", "-r", "-w", "-i", "-n", "-x", "-z"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.LocalDSN, "l", config.LocalDSN, "local SQLite database file")
	fs.StringVar(&config.RemoteDSN, "d", config.RemoteDSN, "remote database DSN")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	backupTimes := fs.String("t", strings.Join(config.BackupTimes, ","), "backup times of day, comma-separated")
	fs.IntVar(&config.RetentionDays, "r", config.RetentionDays, "retention age in days")
	callTimeout := fs.Int("w", int(config.CallTimeout.Seconds()), "per-call timeout (in seconds)")
	onlineCheckInterval := fs.Int("i", int(config.OnlineCheckInterval.Seconds()), "connectivity check interval (in seconds)")

	fs.StringVar(&config.ProductName, "n", config.ProductName, "product name for export files")
	fs.StringVar(&config.ExportDir, "x", config.ExportDir, "export directory")
	fs.BoolVar(&config.DisableCompression, "z", config.DisableCompression, "disable snapshot compression")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.BackupTimes = splitTimes(*backupTimes)
	config.CallTimeout = time.Duration(*callTimeout) * time.Second
	config.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second

	return nil
}

func splitTimes(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
