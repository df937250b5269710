package report

import (
	"os"
	"testing"

	"github.com/caremesh-ai/triage/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
