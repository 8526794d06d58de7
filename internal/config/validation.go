package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateDocument(data), nil
}

// ValidateDocument is ValidateFile for an in-memory document.
func ValidateDocument(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", VersionPrefix)
	} else if !strings.HasPrefix(version, VersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, VersionPrefix, VersionPrefix)
	}

	validateServerStructure(rawConfig, result)
	validateAuthStructure(rawConfig, result)
	validateStripeStructure(rawConfig, result)

	return result
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.addError("server", "server field is required and must be an object")
		return
	}
	if _, ok := server["baseURL"]; !ok {
		result.addError("server.baseURL", "baseURL is required. Hint: the public URL of this server, also used as OAuth issuer")
	}
	if _, ok := server["addr"]; !ok {
		result.addWarning("server.addr", "addr not set, defaulting to %q", DefaultAddr)
	}
	if origins, ok := server["allowedOrigins"].([]any); !ok || len(origins) == 0 {
		result.addWarning("server.allowedOrigins", "no allowed origins, CORS will accept any origin")
	}
}

func validateAuthStructure(rawConfig map[string]any, result *ValidationResult) {
	auth, ok := rawConfig["auth"].(map[string]any)
	if !ok {
		result.addError("auth", "auth field is required and must be an object")
		return
	}

	for _, name := range []string{"googleClientId", "googleClientSecret", "cookieEncryptionKey"} {
		if _, ok := auth[name]; !ok {
			result.addError("auth."+name, "%s is required", name)
		}
	}
	for _, name := range secretFields["auth"] {
		if value, ok := auth[name]; ok {
			if err := validateEnvVarReference(value, name, "auth."+name); err != nil {
				result.Errors = append(result.Errors, *err)
			}
		}
	}

	if ttl, ok := auth["tokenTtl"].(string); ok {
		if _, err := time.ParseDuration(ttl); err != nil {
			result.addError("auth.tokenTtl", "invalid duration '%s'. Hint: use Go duration syntax such as \"1h\" or \"30m\"", ttl)
		}
	}

	storage, _ := auth["storage"].(string)
	switch StorageKind(storage) {
	case "", StorageMemory:
	case StorageFirestore:
		if _, ok := auth["gcpProject"]; !ok {
			result.addError("auth.gcpProject", "gcpProject is required when using firestore storage")
		}
		if _, ok := auth["jwtSecret"]; !ok {
			result.addError("auth.jwtSecret", "jwtSecret is required when using firestore storage. Hint: tokens must survive restarts")
		}
	default:
		result.addError("auth.storage", "unknown storage '%s' - use \"memory\" or \"firestore\"", storage)
	}
}

func validateStripeStructure(rawConfig map[string]any, result *ValidationResult) {
	raw, exists := rawConfig["stripe"]
	if !exists {
		result.addWarning("stripe", "no stripe section, paid tools and the webhook are disabled")
		return
	}
	stripe, ok := raw.(map[string]any)
	if !ok {
		result.addError("stripe", "stripe must be an object")
		return
	}

	if _, ok := stripe["secretKey"]; !ok {
		result.addError("stripe.secretKey", "secretKey is required when the stripe section is present")
	}
	for _, name := range secretFields["stripe"] {
		if value, ok := stripe[name]; ok {
			if err := validateEnvVarReference(value, name, "stripe."+name); err != nil {
				result.Errors = append(result.Errors, *err)
			}
		}
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI", match, strings.Trim(match, "${}"))
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
