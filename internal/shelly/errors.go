package shelly

import "fmt"

// CommError reports a failed exchange with the device: a transport error,
// a non-2xx HTTP status, or a response missing the expected fields. The
// caller decides the policy; this package never terminates the process.
type CommError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *CommError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: device returned status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: unexpected device response: %s", e.Op, e.Body)
	}
}

func (e *CommError) Unwrap() error {
	return e.Err
}
