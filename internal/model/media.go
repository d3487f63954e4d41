package model

import "errors"

// Supported upload content types
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypeMP4  = "video/mp4"
	ContentTypeMOV  = "video/quicktime"
)

var allowedUploadTypes = map[string]string{
	ContentTypeJPEG: ".jpg",
	ContentTypePNG:  ".png",
	ContentTypeGIF:  ".gif",
	ContentTypeWebP: ".webp",
	ContentTypeMP4:  ".mp4",
	ContentTypeMOV:  ".mov",
}

// Upload purposes decide the object key folder.
const (
	MediaPurposePost   = "post"
	MediaPurposeAvatar = "avatar"
	MediaPurposeScoop  = "scoop"
)

// PresignRequest asks for a presigned PUT URL.
type PresignRequest struct {
	ContentType string `json:"contentType" validate:"required"`
	Purpose     string `json:"purpose" validate:"required,oneof=post avatar scoop"`
	FileSize    int64  `json:"fileSize" validate:"gte=0"`
}

// PresignResponse returns upload details for direct-to-bucket uploads.
type PresignResponse struct {
	UploadURL  string `json:"uploadUrl"`
	Key        string `json:"key"`
	PublicURL  string `json:"publicUrl,omitempty"`
	ExpiresInS int    `json:"expiresIn"`
}

// MaxUploadSize bounds presigned uploads.
const MaxUploadSize = 50 * 1024 * 1024

// ExtensionFor returns the key extension for an allowed content type.
func ExtensionFor(contentType string) (string, bool) {
	ext, ok := allowedUploadTypes[contentType]
	return ext, ok
}

// IsVideoType reports whether contentType is a video.
func IsVideoType(contentType string) bool {
	return contentType == ContentTypeMP4 || contentType == ContentTypeMOV
}

var (
	ErrInvalidMediaType = NewError(ErrValidation, "unsupported media type")
	ErrFileTooLarge     = NewError(ErrValidation, "file too large")
	ErrMediaNotEnabled  = NewError(ErrNotEnabled, "media storage is not configured")
)

// IsMediaError reports whether err came from upload validation.
func IsMediaError(err error) bool {
	return errors.Is(err, ErrInvalidMediaType) || errors.Is(err, ErrFileTooLarge)
}
