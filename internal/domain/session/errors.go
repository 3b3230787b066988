package session

import "errors"

// ErrUserIDRequired 缺少 user_id（归一化后为空）
var ErrUserIDRequired = errors.New("user_id is required")
