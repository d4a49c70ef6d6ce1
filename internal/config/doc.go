// Package config provides configuration loading, merging, and path management
// for the advisor service.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Built-in defaults (Default)
//  2. Global config (~/.config/advisor/)
//  3. Project config (advisor.json/advisor.jsonc and .advisor/)
//  4. ADVISOR_CONFIG file
//  5. ADVISOR_CONFIG_CONTENT inline JSON
//  6. Environment variables
//
// Each source overlays only the fields it actually sets, so a project config
// that names a single field leaves every other default intact. Environment
// variables have the highest precedence.
//
// # Supported Formats
//
// The package supports both JSON and JSONC (JSON with Comments) formats:
//   - advisor.json - Standard JSON configuration
//   - advisor.jsonc - JSON with comments, processed using tidwall/jsonc
//
// # Variable Interpolation
//
// Configuration files support two types of variable interpolation:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents (properly escaped for JSON)
//
// File paths in {file:path} placeholders support:
//   - Absolute paths
//   - Relative paths (resolved relative to config file directory)
//   - Home directory expansion (~/)
//
// Example configuration with interpolation:
//
//	{
//	  "model": {
//	    "baseURL": "{env:OLLAMA_BASE_URL}",
//	    "name": "llama3.2:3b"
//	  },
//	  "safety": {
//	    "rulesFile": "{env:ADVISOR_RULES_FILE}"
//	  }
//	}
//
// # Environment Variable Overrides
//
// Several environment variables provide direct configuration overrides:
//   - OLLAMA_BASE_URL - Model endpoint base URL
//   - OLLAMA_MODEL - Model name
//   - MODEL_TIMEOUT - Per-call inference timeout in seconds
//   - MODEL_TEMPERATURE - Sampling temperature
//   - ADVISOR_PORT - HTTP listen port
//   - REDIS_URL - Redis session store URL
//   - QDRANT_HOST, QDRANT_API_KEY - Vector retrieval backend
//   - ADVISOR_LOG_LEVEL - Log level
//   - ADVISOR_CONFIG - Path to a specific config file
//   - ADVISOR_CONFIG_CONTENT - Inline JSON configuration
//   - ADVISOR_CONFIG_DIR - Override the config directory location
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path
// management through the Paths type:
//   - Data: ~/.local/share/advisor (XDG_DATA_HOME)
//   - Config: ~/.config/advisor (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/advisor (XDG_CACHE_HOME)
//   - State: ~/.local/state/advisor (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Usage Example
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
package config
