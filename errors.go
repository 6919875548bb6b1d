package lantern

import "errors"

var (
	// ErrUnknownShaderType is returned when a shader type name is not registered.
	ErrUnknownShaderType = errors.New("lantern: unknown shader type")
	// ErrUnknownTextureType is returned when a texture type has no source.
	ErrUnknownTextureType = errors.New("lantern: unknown texture type")
	// ErrInvalidShaderProp is returned for unknown shader props or values of the wrong type.
	ErrInvalidShaderProp = errors.New("lantern: invalid shader prop")
	// ErrNoTextRenderer is reported through textFailed when no TextRenderer is configured.
	ErrNoTextRenderer = errors.New("lantern: no text renderer configured")
	// ErrNoImageFetcher is reported through failed when an image texture has a
	// src but the manager has no ImageFetcher.
	ErrNoImageFetcher = errors.New("lantern: no image fetcher configured")
	// ErrTextureReleased is reported when a released texture is asked to load again.
	ErrTextureReleased = errors.New("lantern: texture was released")
	// ErrDecode wraps image decoding failures.
	ErrDecode = errors.New("lantern: decode image")
	// ErrStageStopped is returned by Run when the stage has been stopped.
	ErrStageStopped = errors.New("lantern: stage stopped")
)
