// SPDX-License-Identifier: GPL-3.0-only

package commons

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded = false

// LoadEnvFile loads the file named by --env-file, once. Variables already
// present in the environment are not overridden.
func LoadEnvFile() {
	if envLoaded {
		return
	}
	envLoaded = true
	args := os.Args[1:]
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			envFile := args[i+1]
			fmt.Printf("Loading environment variables from file: %s\n", envFile)
			if err := godotenv.Load(envFile); err != nil {
				fmt.Printf("Failed to load env file: %s\n", err)
			}
			return
		}
	}
}

// GetEnv returns the value of key, or the first default when it is unset or empty.
func GetEnv(key string, defaultValue ...string) string {
	LoadEnvFile()
	if v := os.Getenv(key); v != "" {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func GetEnvInt(key string, defaultValue int) int {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		Logger.Warnf("Ignoring invalid integer for %s: %q", key, v)
		return defaultValue
	}
	return n
}

func GetEnvBool(key string, defaultValue bool) bool {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		Logger.Warnf("Ignoring invalid boolean for %s: %q", key, v)
		return defaultValue
	}
	return b
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		Logger.Warnf("Ignoring invalid duration for %s: %q", key, v)
		return defaultValue
	}
	return d
}
