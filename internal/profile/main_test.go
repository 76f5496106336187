package profile

import (
	"testing"

	"fitness-bot/pkg/logger"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newNopLogger() *logger.Logger {
	return logger.NewNop()
}
