package entity

import "github.com/graphkeep/graphkeep/internal/graphkeeperr"

func newValidationError(format string, args ...any) error {
	return graphkeeperr.New(graphkeeperr.Validation, format, args...)
}
