package config

// Validator interface for configurations that need validation.
type Validator interface {
	Validate() error
}

// Defaulter supplies the default value of every key a configuration reads.
// Keys without a default are invisible to environment overrides.
type Defaulter interface {
	Defaults() map[string]any
}

// EnvAliaser maps config keys to extra environment variable names accepted
// besides the prefixed form.
type EnvAliaser interface {
	EnvAliases() map[string][]string
}
