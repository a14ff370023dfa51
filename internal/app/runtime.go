package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv is set by the procureflow/testing package so the server and
// worker binaries skip connecting to Postgres, Redis and asynq.
const TestModeEnv = "PROCUREFLOW_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// parseTestMode accepts any strconv boolean; unparsable values mean off.
func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && on
}

func detectTestMode() {
	testModeFlag.Store(parseTestMode(os.Getenv(TestModeEnv)))
}

// InTestMode reports whether the entrypoints should return before dialing
// their backing services.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment after a test changed it.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
