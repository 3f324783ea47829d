package config

import "time"

const (
	defaultDataDir        = "~/.local/share/curator"
	defaultLogDir         = "~/.local/share/curator/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLogFileMaxMB   = 20
	defaultLogFileBackups = 5
	defaultLogFileMaxAge  = 30
	defaultMaxReruns      = 5
	defaultBacklogGrace   = "24h"

	// HardRerunCeiling bounds every rerun limit regardless of configuration.
	HardRerunCeiling = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			File:           true,
			FileMaxMB:      defaultLogFileMaxMB,
			FileMaxBackups: defaultLogFileBackups,
			FileMaxAgeDays: defaultLogFileMaxAge,
		},
		Engine: Engine{
			MaxReruns:    defaultMaxReruns,
			RerunCeiling: HardRerunCeiling,
		},
		Daemon: Daemon{
			WatchConfig: true,
		},
		Backlog: Backlog{
			Grace:         defaultBacklogGrace,
			GraceDuration: 24 * time.Hour,
		},
	}
}
