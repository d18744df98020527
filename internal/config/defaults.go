package config

const (
	defaultConfigPath      = "~/.config/gifconv/config.toml"
	defaultStateDir        = "~/.local/share/gifconv"
	defaultLogDir          = "~/.local/share/gifconv/logs"
	defaultBinaryName      = "ffmpeg"
	defaultResourceArchive = "ffmpeg.zip"
	defaultMaxInputMiB     = 8
	defaultAPIBind         = "127.0.0.1:7489"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults. Install,
// resource and package locations stay empty here and are derived from the
// running executable during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Transcoder: Transcoder{
			BinaryName:      defaultBinaryName,
			ResourceArchive: defaultResourceArchive,
		},
		Conversion: Conversion{
			MaxInputMiB:    defaultMaxInputMiB,
			HistoryEnabled: true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
