//go:build !opencv

package detection

import "fmt"

func newOpenCVDetector(opts Options) (Detector, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags opencv for %q", ErrBackendUnavailable, BackendOpenCV)
}
