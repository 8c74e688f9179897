//go:build !unix

package kv

// fileLock is a no-op where flock is unavailable; only the in-process
// mutex protects the store file there.
type fileLock struct{}

func lockPath(path string) string {
	return path + ".lock"
}

func acquireLock(string, bool) (*fileLock, error) {
	return &fileLock{}, nil
}

func (*fileLock) release() {}
