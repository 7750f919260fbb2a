// Package config loads, normalizes, and validates projector's TOML
// configuration. Path fields are tilde-expanded and made absolute during
// load, so the rest of the codebase never sees a relative path.
package config
