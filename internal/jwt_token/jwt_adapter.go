package jwttoken

import (
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
)

// JWTServiceAdapter bridges the JWT service to the middleware validator
// interface so the middleware package does not depend on token internals.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Principal:      claims.Principal,
		OrganizationID: claims.OrganizationID,
	}, nil
}
