package model

import (
	"strings"
	"time"
)

// DeviceToken is a registered push token. A user may have several devices.
type DeviceToken struct {
	UserID    string    `json:"-"`
	Token     string    `json:"-"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=expo ios android"`
}

// Platform constants
const (
	PlatformExpo    = "expo"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// IsExpoToken reports whether the token belongs to Expo's push service rather than FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}
