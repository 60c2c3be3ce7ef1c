package utils

import (
	"context"

	"rental-system/pkg/contextkeys"
	apperrors "rental-system/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrUserIDNotFoundInContext
	}
	return userID, nil
}

// ActorIDFromCtx возвращает nil для системных вызовов (планировщик, сидеры).
func ActorIDFromCtx(ctx context.Context) *uint64 {
	userID, err := GetUserIDFromCtx(ctx)
	if err != nil {
		return nil
	}
	return &userID
}

func IPAddressFromCtx(ctx context.Context) *string {
	ip, ok := ctx.Value(contextkeys.IPAddressKey).(string)
	if !ok || ip == "" {
		return nil
	}
	return &ip
}

func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return id
}

func WithActor(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}
