package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Context keys
type contextKey string

const (
	userIDKey    contextKey = "user_id"
	usernameKey  contextKey = "username"
	requestIDKey contextKey = "request_id"
	stateKey     contextKey = "request_state"
)

// requestState изменяемое состояние запроса, видимое внешним middleware
// (пользователь определяется глубже по цепочке, чем логирование)
type requestState struct {
	userID string
}

func withState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{}
	return context.WithValue(ctx, stateKey, st), st
}

func stateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		return st
	}
	return nil
}

// GetUserID извлекает user_id из контекста
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUsername извлекает email пользователя из контекста
func GetUsername(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestID извлекает request_id из контекста
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUser добавляет пользователя в контекст
func WithUser(ctx context.Context, userID, username string) context.Context {
	if st := stateFrom(ctx); st != nil {
		st.userID = userID
	}
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

// WithRequestID добавляет request_id в контекст
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GenerateRequestID генерирует уникальный ID запроса
func GenerateRequestID() string {
	return uuid.NewString()
}
