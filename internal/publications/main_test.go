package publications

import (
	"testing"

	"go.uber.org/goleak"
)

// LoadFiles fans out over an errgroup; every worker must be gone when it returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
