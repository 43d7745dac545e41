package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/mkalvis/stockvault/internal/flagx"
	"github.com/mkalvis/stockvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so the file can specify intervals either as strings like
// "15s" or as integer nanoseconds. Pointer fields distinguish "absent" from
// zero values so only keys that appear in the file overlay the defaults.
type JsonConfig struct {
	LocalDSN            *string         `json:"local_dsn"`
	RemoteDSN           *string         `json:"remote_dsn"`
	S3AccessKey         *string         `json:"s3_access_key"`
	S3SecretKey         *string         `json:"s3_secret_key"`
	S3Region            *string         `json:"s3_region"`
	S3BaseEndpoint      *string         `json:"s3_base_endpoint"`
	BackupTimes         []string        `json:"backup_times"`
	RetentionDays       *int            `json:"retention_days"`
	CallTimeout         *timex.Duration `json:"call_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	DisableCompression  *bool           `json:"disable_compression"`
	ProductName         *string         `json:"product_name"`
	ExportDir           *string         `json:"export_dir"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c/-config flags; when neither is given nothing is loaded.
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", jsonConfigFile, err)
	}

	if jc.LocalDSN != nil {
		cfg.LocalDSN = *jc.LocalDSN
	}
	if jc.RemoteDSN != nil {
		cfg.RemoteDSN = *jc.RemoteDSN
	}
	if jc.S3AccessKey != nil {
		cfg.S3AccessKey = *jc.S3AccessKey
	}
	if jc.S3SecretKey != nil {
		cfg.S3SecretKey = *jc.S3SecretKey
	}
	if jc.S3Region != nil {
		cfg.S3Region = *jc.S3Region
	}
	if jc.S3BaseEndpoint != nil {
		cfg.S3BaseEndpoint = *jc.S3BaseEndpoint
	}
	if len(jc.BackupTimes) > 0 {
		cfg.BackupTimes = jc.BackupTimes
	}
	if jc.RetentionDays != nil {
		cfg.RetentionDays = *jc.RetentionDays
	}
	if jc.CallTimeout != nil {
		cfg.CallTimeout = jc.CallTimeout.Std()
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Std()
	}
	if jc.DisableCompression != nil {
		cfg.DisableCompression = *jc.DisableCompression
	}
	if jc.ProductName != nil {
		cfg.ProductName = *jc.ProductName
	}
	if jc.ExportDir != nil {
		cfg.ExportDir = *jc.ExportDir
	}

	return nil
}
