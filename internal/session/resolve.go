package session

import "github.com/matheus3301/wppcrm/internal/config"

const DefaultSessionName = "main"

// Resolve picks the session to run: the --session flag, then the config's
// default_session, then "main". The result is normalized but not validated.
func Resolve(flagOverride string) string {
	if name := NormalizeName(flagOverride); name != "" {
		return name
	}
	if cfg, err := config.Load(ConfigPath()); err == nil {
		if name := NormalizeName(cfg.DefaultSession); name != "" {
			return name
		}
	}
	return DefaultSessionName
}

// LoadConfig reads the global config, or the defaults when it does not exist.
func LoadConfig() (*config.Config, error) {
	return config.LoadOrDefault(ConfigPath())
}
