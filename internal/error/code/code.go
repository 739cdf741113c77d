package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusCreated - 201: 已创建.
	StatusCreated = 201
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusForbidden - 403: 禁止访问.
	StatusForbidden = 403
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源冲突.
	StatusConflict = 409
	// StatusUnprocessableEntity - 422: 状态不允许.
	StatusUnprocessableEntity = 422
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusServiceUnavailable - 503: 依赖不可用.
	StatusServiceUnavailable = 503
)

// 通用错误码.
const (
	ErrSuccess         = "SUCCESS"
	ErrInternal        = "INTERNAL_ERROR"
	ErrBind            = "BIND_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrDatabase        = "DATABASE_ERROR"
	ErrTooManyRequests = "RATE_LIMIT_EXCEEDED"
	ErrUnavailable     = "SERVICE_UNAVAILABLE"
	ErrNetwork         = "NETWORK_ERROR"
)

// 认证相关错误码.
const (
	ErrNoToken            = "NO_TOKEN"
	ErrTokenInvalid       = "INVALID_TOKEN"
	ErrTokenExpired       = "TOKEN_EXPIRED"
	ErrForbidden          = "FORBIDDEN"
	ErrInvalidCredentials = "INVALID_CREDENTIALS"
	ErrAccountInactive    = "ACCOUNT_INACTIVE"
)

// 业务相关错误码.
const (
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrGuardUnavailable  = "GUARD_UNAVAILABLE"
	ErrIncidentClosed    = "INCIDENT_CLOSED"
	ErrLastAdmin         = "LAST_ADMIN"
)
