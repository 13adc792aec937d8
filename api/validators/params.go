package validators

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
)

// ParseUUID parses an identifier from a path or body field.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
