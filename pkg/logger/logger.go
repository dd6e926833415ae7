package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`

	// File enables a rotated log file next to stdout.
	File       string `split_words:"true"`
	MaxSizeMB  int    `split_words:"true" default:"100"`
	MaxBackups int    `split_words:"true" default:"5"`
	MaxAgeDays int    `split_words:"true" default:"14"`
	Compress   bool   `split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// New builds a logger from conf without touching the global one.
func New(conf Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if conf.PrettyFormat {
		out = zerolog.NewConsoleWriter()
	}
	if conf.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    conf.MaxSizeMB,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAgeDays,
			Compress:   conf.Compress,
		})
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	if conf.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger.With().Caller().Stack().Logger()
}

func Init(opts ...Config) {
	log.Logger = New(*safe(opts...))
}
