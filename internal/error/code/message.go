package code

// 错误码消息映射
var codeMessageMap = map[string]string{
	// 通用错误码
	ErrSuccess:         "Success",
	ErrInternal:        "Internal server error",
	ErrBind:            "Invalid request body",
	ErrValidation:      "Validation failed",
	ErrNotFound:        "Resource not found",
	ErrConflict:        "Resource already exists",
	ErrDatabase:        "Database error",
	ErrTooManyRequests: "Too many requests, please try again later",
	ErrUnavailable:     "Service temporarily unavailable",
	ErrNetwork:         "Network error",

	// 认证相关错误码
	ErrNoToken:            "Access token is required",
	ErrTokenInvalid:       "Invalid access token",
	ErrTokenExpired:       "Access token has expired",
	ErrForbidden:          "Insufficient permissions",
	ErrInvalidCredentials: "Invalid email or password",
	ErrAccountInactive:    "Account is not active",

	// 业务相关错误码
	ErrInvalidTransition: "Status transition is not allowed",
	ErrGuardUnavailable:  "Guard is not available for dispatch",
	ErrIncidentClosed:    "Incident is no longer open",
	ErrLastAdmin:         "Cannot remove the last super administrator",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[string]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrInternal:        StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrNotFound:        StatusNotFound,
	ErrConflict:        StatusConflict,
	ErrDatabase:        StatusInternalServerError,
	ErrTooManyRequests: StatusTooManyRequests,
	ErrUnavailable:     StatusServiceUnavailable,
	ErrNetwork:         StatusServiceUnavailable,

	// 认证相关错误码
	ErrNoToken:            StatusUnauthorized,
	ErrTokenInvalid:       StatusUnauthorized,
	ErrTokenExpired:       StatusUnauthorized,
	ErrForbidden:          StatusForbidden,
	ErrInvalidCredentials: StatusUnauthorized,
	ErrAccountInactive:    StatusForbidden,

	// 业务相关错误码
	ErrInvalidTransition: StatusUnprocessableEntity,
	ErrGuardUnavailable:  StatusConflict,
	ErrIncidentClosed:    StatusConflict,
	ErrLastAdmin:         StatusConflict,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code string) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return codeMessageMap[ErrInternal]
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code string) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
