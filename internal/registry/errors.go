package registry

import "errors"

// ErrFetchFailed marks network and archive failures raised by dependency
// download steps. They surface as a failed command with exit code 1.
var ErrFetchFailed = errors.New("fetch failed")
