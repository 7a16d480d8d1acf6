package log

// Config controls the slog JSON handler set up at process start.
type Config struct {
	Level     int  `mapstructure:"level"`
	AddSource bool `mapstructure:"add_source"`
}
