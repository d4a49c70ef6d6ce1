package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/advisor-ai/advisor/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/advisor/)
// 2. Project config (advisor.json / advisor.jsonc, .advisor/)
// 3. ADVISOR_CONFIG file
// 4. ADVISOR_CONFIG_CONTENT inline JSON
// 5. Environment variables
//
// Later sources overlay earlier ones field by field, starting from Default().
func Load(directory string) (*types.Config, error) {
	config := Default()

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config (~/.config/advisor/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "advisor.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "advisor.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".advisor")
		loadOnce(filepath.Join(directory, "advisor.json"), directory)
		loadOnce(filepath.Join(directory, "advisor.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "advisor.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "advisor.jsonc"), projectConfigDir)
	}

	// 3. ADVISOR_CONFIG file override
	if configPath := os.Getenv("ADVISOR_CONFIG"); configPath != "" {
		configDir := filepath.Dir(configPath)
		loadOnce(configPath, configDir)
	}

	// 4. ADVISOR_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("ADVISOR_CONFIG_CONTENT"); configContent != "" {
		data := interpolate(jsonc.ToJSON([]byte(configContent)), directory)
		_ = json.Unmarshal(data, config)
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
// Unmarshaling into the accumulated config overlays only the fields the
// file actually sets.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	return json.Unmarshal(data, config)
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		// Resolve path
		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Model.BaseURL = baseURL
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.Model.Name = model
	}
	if timeout := os.Getenv("MODEL_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			config.Model.TimeoutSeconds = secs
		}
	}
	if temp := os.Getenv("MODEL_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Model.Temperature = v
		}
	}
	if port := os.Getenv("ADVISOR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			config.Server.Port = p
		}
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Sessions.RedisURL = redisURL
	}
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.Retrieval.Qdrant.Host = host
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.Retrieval.Qdrant.APIKey = apiKey
	}
	if level := os.Getenv("ADVISOR_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// Validate rejects configurations the pipeline cannot run with.
func Validate(config *types.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", config.Server.Port)
	}
	if config.Model.Name == "" {
		return fmt.Errorf("config: model name is required")
	}
	if config.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: model timeout must be positive, got %d", config.Model.TimeoutSeconds)
	}
	if config.Model.RetryLimit < 0 {
		return fmt.Errorf("config: retry limit cannot be negative, got %d", config.Model.RetryLimit)
	}
	if config.Model.MaxConcurrent <= 0 {
		return fmt.Errorf("config: max concurrent inferences must be positive, got %d", config.Model.MaxConcurrent)
	}
	if config.Model.Temperature < 0 || config.Model.Temperature > 2 {
		return fmt.Errorf("config: temperature must be within [0, 2], got %g", config.Model.Temperature)
	}
	if config.Context.MaxContextTokens <= 0 {
		return fmt.Errorf("config: max context tokens must be positive, got %d", config.Context.MaxContextTokens)
	}
	if config.Context.HistoryTokenBudget < 0 {
		return fmt.Errorf("config: history token budget cannot be negative, got %d", config.Context.HistoryTokenBudget)
	}
	if config.Retrieval.K < 0 {
		return fmt.Errorf("config: retrieval k cannot be negative, got %d", config.Retrieval.K)
	}
	return nil
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers ADVISOR_CONFIG_DIR, then ~/.config/advisor.
func GetConfigDir() string {
	if dir := os.Getenv("ADVISOR_CONFIG_DIR"); dir != "" {
		return dir
	}
	return GetPaths().Config
}
