package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
)

const adminIDHeader = "X-Admin-Id"

// actorFromRequest resolves the acting admin from the request header. Public
// intake endpoints pass required=false and fall back to the nil UUID.
func actorFromRequest(r *http.Request, required bool) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(adminIDHeader))
	if raw == "" {
		if required {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id header required")
		}
		return uuid.Nil, nil
	}
	actorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid admin id")
	}
	return actorID, nil
}
