package webgpu

import (
	"fmt"
	"time"
)

// waitSlice is how long one fence wait blocks before it is retried.
const waitSlice = time.Second

// waitFence blocks until wait reports the fence signaled. Submissions have
// no deadline: a long kernel is waited for, never abandoned while the device
// still uses its resources.
func waitFence(wait func(time.Duration) (bool, error)) error {
	for {
		ok, err := wait(waitSlice)
		if err != nil {
			return fmt.Errorf("wait for GPU: %w", err)
		}
		if ok {
			return nil
		}
	}
}
