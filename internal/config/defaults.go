package config

const (
	defaultDataDir          = "~/.local/share/haul"
	defaultLogDir           = "~/.local/share/haul/logs"
	defaultDatabaseFile     = "files.db"
	defaultVersionFile      = "files.version"
	defaultBackupFile       = "files.backup.db"
	defaultJournalMode      = "WAL"
	defaultBusyTimeoutMS    = 5000
	defaultQueueBuffer      = 64
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultConfigPath       = "~/.config/haul/config.toml"
	defaultProjectConfig    = "haul.toml"
	dataDirEnv              = "HAUL_DATA_DIR"
	defaultForeignKeys      = true
	defaultVacuumOnStart    = true
	defaultStrictMigrations = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			File:             defaultDatabaseFile,
			VersionFile:      defaultVersionFile,
			BackupFile:       defaultBackupFile,
			JournalMode:      defaultJournalMode,
			BusyTimeoutMS:    defaultBusyTimeoutMS,
			ForeignKeys:      defaultForeignKeys,
			QueueBuffer:      defaultQueueBuffer,
			StrictMigrations: defaultStrictMigrations,
			VacuumOnStart:    defaultVacuumOnStart,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
