package collector

import "runtime"

func numCPU() int {
	return runtime.NumCPU()
}
