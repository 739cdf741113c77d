package services

import (
	"errors"

	"apex-http-service/internal/domain/models"
)

// 业务错误，控制器通过 errors.Is 映射为响应码
var (
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("resource conflict")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("operation not permitted for this role")
	ErrInvalidTransition  = models.ErrInvalidTransition
	ErrGuardUnavailable   = errors.New("guard is not available for dispatch")
	ErrIncidentClosed     = errors.New("incident is no longer open")
	ErrLastAdmin          = errors.New("cannot remove the last super administrator")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrCacheMiss          = errors.New("cache miss")
)
