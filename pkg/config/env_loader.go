package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
)

// EnvVar represents a single environment variable
type EnvVar struct {
	Key   string
	Value string
}

// LoadEnvFile reads KEY=VALUE lines from a credentials file such as
//
//	STRAVA2CSV_CLIENT_ID=12345
//	STRAVA2CSV_CLIENT_SECRET="abcdef"
//
// Blank lines and lines starting with # are ignored.
func LoadEnvFile(path string) ([]EnvVar, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("[ENV] Warning: Failed to close file %s: %v", path, err)
		}
	}()

	var envVars []EnvVar
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.Printf("[ENV] Warning: Invalid format at line %d in %s", lineNum, path)
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if key == "" || strings.ContainsAny(key, " \t") {
			log.Printf("[ENV] Warning: Invalid key at line %d in %s: '%s'", lineNum, path, key)
			continue
		}

		envVars = append(envVars, EnvVar{Key: key, Value: value})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading env file %s: %w", path, err)
	}

	log.Printf("[ENV] Loaded %d variables from %s", len(envVars), path)
	return envVars, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// ApplyEnvVars sets the variables that are not already present in the
// process environment and returns the keys it set. Values are never logged.
func ApplyEnvVars(envVars []EnvVar) []string {
	var applied []string

	for _, env := range envVars {
		if _, exists := os.LookupEnv(env.Key); exists {
			log.Printf("[ENV] Keeping existing %s", env.Key)
			continue
		}
		if err := os.Setenv(env.Key, env.Value); err != nil {
			log.Printf("[ENV] Error setting environment variable %s: %v", env.Key, err)
			continue
		}
		applied = append(applied, env.Key)
	}

	return applied
}
