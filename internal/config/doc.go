// Package config loads, normalizes, and validates curator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CURATOR_DATA_DIR. Task sections carry each plugin's raw subtree; plugins
// decode their own subtree with DecodeSection, which rejects unknown keys so
// typos surface as configuration errors before a task starts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
