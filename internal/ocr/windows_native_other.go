//go:build !windows

package ocr

func newWindowsNativeBackend(cfg Config) (Backend, error) {
	return nil, ErrUnsupportedEngine
}
