package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already present in config act as defaults; a .env file in the working directory
// and environment variables (http.port -> HTTP_PORT) override the file.
func Load(file string, config any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %v", err)
	}

	v := viper.New()

	defaults := make(map[string]any)
	if err := flatten("", config, defaults); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigFile(file)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from file %s: %v", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// flatten registers every leaf of a (nested) struct under its dotted key, so that
// environment overrides work for keys the config file does not mention.
func flatten(prefix string, in any, out map[string]any) error {
	m := make(map[string]any)
	if err := mapstructure.Decode(in, &m); err != nil {
		return err
	}

	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}

		if rv := reflect.Indirect(reflect.ValueOf(val)); rv.Kind() == reflect.Struct {
			if err := flatten(key, rv.Interface(), out); err != nil {
				return err
			}
			continue
		}

		out[key] = val
	}

	return nil
}
