//go:build !linux && !darwin && !freebsd

package idle

import "runtime"

func schedYield() {
	runtime.Gosched()
}
