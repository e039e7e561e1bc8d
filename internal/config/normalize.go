package config

import "strings"

// normalize expands paths and clamps numeric settings to documented ranges.
func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.OutputDir, &c.Paths.LogDir, &c.Paths.SocketPath, &c.Presets.Path} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	c.Backend.APIToken = strings.TrimSpace(c.Backend.APIToken)

	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
	c.Queue.MaxConcurrent = clampInt(c.Queue.MaxConcurrent, MinConcurrent, MaxConcurrent)
	if c.Queue.DelayBetweenMs < 0 {
		c.Queue.DelayBetweenMs = 0
	}
	if c.Realtime.HeartbeatInterval <= 0 {
		c.Realtime.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Realtime.ReconnectBaseMs <= 0 {
		c.Realtime.ReconnectBaseMs = defaultReconnectBaseMs
	}
	if c.Realtime.ReconnectMaxMs < c.Realtime.ReconnectBaseMs {
		c.Realtime.ReconnectMaxMs = defaultReconnectMaxMs
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	return nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
