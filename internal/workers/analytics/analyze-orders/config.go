// internal/workers/analytics/analyze-orders/config.go
package analyzeorders

import (
	"fmt"
	"time"

	"shoe-size-analytics/internal/common/config"
	"shoe-size-analytics/internal/common/errors"
)

type Config struct {
	Timeout          time.Duration
	CommandTimeout   time.Duration
	MaxDocuments     int
	MaxDocumentBytes int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:          60 * time.Second,
		CommandTimeout:   errors.DefaultCommandTimeout,
		MaxDocuments:     20,
		MaxDocumentBytes: 32 << 20,
	}
}

// ConfigFromApp derives the worker settings from the shared configuration.
func ConfigFromApp(app *config.Config) *Config {
	c := DefaultConfig()
	if app == nil {
		return c
	}
	if w, ok := app.Workers[TaskType]; ok && w.Timeout > 0 {
		c.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	if app.Server.MaxFiles > 0 {
		c.MaxDocuments = app.Server.MaxFiles
	}
	if app.Server.MaxUploadBytes > 0 {
		c.MaxDocumentBytes = int(app.Server.MaxUploadBytes)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxDocuments < 1 {
		return fmt.Errorf("max documents must be at least 1")
	}
	return nil
}
