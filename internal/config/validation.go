package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/scaffold"
	"github.com/conneroisu/stencil/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate checks every section and collects all problems.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateProject(&config.Project, result)
	validateWatch(&config.Watch, result)
	validateLog(&config.Log, result)
	validateScaffold(&config.Scaffold, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateProject(config *ProjectConfig, result *ValidationResult) {
	for field, value := range map[string]string{
		"project.settings": config.Settings,
		"project.database": config.Database,
	} {
		if err := validation.ValidatePath(value); err != nil {
			result.fail(field, value, err.Error(),
				"Use a path relative to the project root",
				"Keep project files inside the project directory")
		}
	}

	if strings.EqualFold(strings.TrimPrefix(config.Settings, "./"), strings.TrimPrefix(config.Database, "./")) {
		result.fail("project.database", config.Database, "database and settings container cannot share a path")
	}
	if !strings.HasSuffix(config.Settings, ".yml") && !strings.HasSuffix(config.Settings, ".yaml") {
		result.warn("project.settings", config.Settings, "settings container is YAML but the file has no .yml extension")
	}
}

func validateWatch(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.fail("watch.debounce", config.Debounce, "debounce cannot be negative",
			"200ms suits most editors")
	} else if config.Debounce > 0 && config.Debounce.Milliseconds() < 10 {
		result.warn("watch.debounce", config.Debounce, "very short debounce splits editor saves into several batches")
	}

	for _, p := range config.Paths {
		if err := validation.ValidatePath(p); err != nil {
			result.fail("watch.paths", p, err.Error())
		}
	}

	settingsIgnored := false
	for _, pattern := range config.Ignore {
		if strings.TrimSpace(pattern) == "" {
			result.warn("watch.ignore", pattern, "empty ignore pattern has no effect")
		}
		if pattern == "*" || pattern == "**" {
			settingsIgnored = true
		}
	}
	if settingsIgnored {
		result.fail("watch.ignore", config.Ignore, "ignore patterns exclude every file",
			"Ignore specific directories such as node_modules instead")
	}
}

func validateLog(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.fail("log.level", config.Level, err.Error(),
			"Use one of: debug, info, warn, error")
	}
	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		result.fail("log.format", config.Format, fmt.Sprintf("unknown log format %q", config.Format),
			"Use text or json")
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.fail("log.dir", config.Dir, err.Error())
		}
	}
}

func validateScaffold(config *ScaffoldConfig, result *ValidationResult) {
	if config.MaxAttempts < 1 {
		result.fail("scaffold.max_attempts", config.MaxAttempts, "max_attempts must be at least 1")
	} else if config.MaxAttempts > 50 {
		result.warn("scaffold.max_attempts", config.MaxAttempts, "a large attempt limit keeps failing generations looping")
	}
	if _, err := scaffold.ParseOverwritePolicy(config.Overwrite); err != nil {
		result.fail("scaffold.overwrite", config.Overwrite, err.Error(),
			"Use one of: prompt, overwrite, skip")
	}
}
