package jwtoken

import "pdv/internal/platform/middleware"

// MiddlewareAdapter bridges the token service to the auth middleware without
// the middleware importing this package.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.OperatorClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.OperatorClaims{
		OperatorID: claims.OperatorID,
		Name:       claims.Name,
		Role:       claims.Role,
	}, nil
}
