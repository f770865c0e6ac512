// Package config loads the layered runtime configuration:
// built-in defaults, then a global YAML file under the XDG config
// directory, then a project-local YAML file, then WOLO_-prefixed
// environment variables (via viper and godotenv), highest precedence last.
//
// Config is loaded once at startup; nothing in the core reloads it
// mid-session.
package config
