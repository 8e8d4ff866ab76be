package panel

import "errors"

var (
	// ErrAuth панель отклонила логин или сессия недействительна.
	// Повторная аутентификация остаётся на вызывающей стороне.
	ErrAuth = errors.New("panel: authentication failed")
	// ErrUpstream панель недоступна, ответила неуспешным статусом или истёк таймаут.
	ErrUpstream = errors.New("panel: upstream failure")
)
