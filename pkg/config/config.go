/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to upper-cased keys, e.g. BOARDWATCH_LISTEN_ADDR.
const EnvPrefix = "BOARDWATCH"

// LoadFile reads an optional JSON or YAML file plus environment overrides
// into dst. An empty path means environment and defaults only.
func LoadFile(path string, dst interface{}) error {
	v := viper.New()

	if d, ok := dst.(Defaulter); ok {
		for key, value := range d.Defaults() {
			v.SetDefault(key, value)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if a, ok := dst.(EnvAliaser); ok {
		for key, names := range a.EnvAliases() {
			envs := append([]string{EnvPrefix + "_" + strings.ToUpper(key)}, names...)
			if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
				return fmt.Errorf("failed to bind env for '%s': %w", key, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read file '%s': %w", path, err)
		}
	}

	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	return nil
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

// LoadAndValidate loads a configuration and validates it if possible.
func LoadAndValidate(path string, cfg interface{}) error {
	if err := LoadFile(path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file '%s': %w", f, err)
		}
	}

	return nil
}
