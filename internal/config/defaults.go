package config

const (
	defaultOutputDir          = "~/reelpipe/output"
	defaultLogDir             = "~/.local/share/reelpipe/logs"
	defaultSocketPath         = "~/.local/share/reelpipe/reelpiped.sock"
	defaultBackendBaseURL     = "http://127.0.0.1:8000"
	defaultRequestTimeout     = 30
	defaultMaxConcurrent      = 1
	defaultDelayBetweenMs     = 1000
	defaultHeartbeatInterval  = 30
	defaultReconnectBaseMs    = 1000
	defaultReconnectMaxMs     = 30000
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
	defaultPresetsPath        = "~/.config/reelpipe/presets.yaml"
)

// Dispatch concurrency is bounded regardless of configured value.
const (
	MinConcurrent = 1
	MaxConcurrent = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Queue: Queue{
			MaxConcurrent:         defaultMaxConcurrent,
			DelayBetweenMs:        defaultDelayBetweenMs,
			ExportVideo:           true,
			ExportMetadata:        true,
			ExportSEO:             true,
			ExportThumbnailPrompt: true,
		},
		Realtime: Realtime{
			HeartbeatInterval: defaultHeartbeatInterval,
			ReconnectBaseMs:   defaultReconnectBaseMs,
			ReconnectMaxMs:    defaultReconnectMaxMs,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Presets: Presets{
			Path: defaultPresetsPath,
		},
	}
}
