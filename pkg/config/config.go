package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

var (
	envFilePath string
	parseOnce   sync.Once
)

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New loads the env file named by -env (or ./.env when present) and then
// processes T from the environment under prefix.
func New[T any](prefix string) (*T, error) {
	path := resolveEnvPath()
	required := path != ""
	if !required {
		path = defaultEnvFile
	}
	return Load[T](prefix, path, required)
}

// Load is New without flag parsing. Variables already present in the
// environment win over the file.
func Load[T any](prefix, path string, required bool) (*T, error) {
	settings, err := Settings(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	default:
		if err := export(settings); err != nil {
			return nil, err
		}
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Settings reads path as a dotenv file and returns its keys upper-cased.
func Settings(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, os.ErrNotExist)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(v.AllKeys()))
	for _, k := range v.AllKeys() {
		out[strings.ToUpper(k)] = v.GetString(k)
	}
	return out, nil
}

func export(settings map[string]string) error {
	for k, val := range settings {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}

func resolveEnvPath() string {
	parseOnce.Do(func() {
		if flag.Lookup("env") == nil {
			flag.StringVar(&envFilePath, "env", "", "path to .env file")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
	})
	return strings.TrimSpace(envFilePath)
}
