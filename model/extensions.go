package model

// Well-known extension names resolved through scope-model directories.
const (
	// ExtensionConfigManager - the per-scope configuration manager.
	ExtensionConfigManager = "config"

	// ExtensionEnvironment - the per-application environment view.
	ExtensionEnvironment = "environment"
)
