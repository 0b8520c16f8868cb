package assets

import "errors"

var (
	ErrEmptyAssetID  = errors.New("empty asset id")
	ErrUnsafeAssetID = errors.New("asset id escapes the asset base")
	ErrFetchFailed   = errors.New("asset fetch failed")
	ErrAssetTooLarge = errors.New("asset exceeds size limit")
	ErrInvalidAsset  = errors.New("invalid glTF asset")
	ErrNoScene       = errors.New("glTF asset has no scene")
)
