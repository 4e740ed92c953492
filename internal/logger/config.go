package logger

// Config holds logger settings.
type Config struct {
	// Level is the minimum logging level (debug, info, warn, error, fatal).
	Level string `env:"LOG_LEVEL" yaml:"level"`
	// Format is the output format. Only "json" is emitted.
	Format string `env:"LOG_FORMAT" yaml:"format"`
	// Development disables sampling so every log line is visible.
	Development bool `yaml:"development"`
	// OutputPaths lists URLs or file paths to write log output to.
	OutputPaths []string `yaml:"output_paths"`
}

const (
	// DefaultLevel is the default logging level.
	DefaultLevel = "info"
	// DefaultFormat is the default log format.
	DefaultFormat = "json"
)

// DefaultOutputPaths is the default list of log output destinations.
var DefaultOutputPaths = []string{"stdout"}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = DefaultOutputPaths
	}
}
