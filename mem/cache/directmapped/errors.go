package directmapped

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every configuration error of this package.
var ErrConfig = errors.New("invalid cache configuration")

// A ConfigError reports a construction parameter that violates a constraint.
type ConfigError struct {
	Constraint string
	Detail     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrConfig, e.Constraint, e.Detail)
}

// Is makes errors.Is(err, ErrConfig) hold for all configuration errors.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configError(constraint, format string, args ...any) error {
	return &ConfigError{
		Constraint: constraint,
		Detail:     fmt.Sprintf(format, args...),
	}
}
