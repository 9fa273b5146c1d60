//go:build !linux

package fallback

// Open reports that no direct-injection path exists on this platform.
func Open(device string) (Injector, error) {
	return nil, ErrUnavailable
}
