package log

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/profile"
)

// Init configures the process-wide default logger. Handlers derive their own
// named loggers from it.
func Init() {
	hclog.SetDefault(hclog.New(&hclog.LoggerOptions{
		Name:  "zenflow",
		Level: hclog.LevelFromString(levelFromEnv()),
	}))
}

func levelFromEnv() string {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		return level
	}
	if profile.Current == profile.DEV {
		return "DEBUG"
	}
	return "INFO"
}

func Error(format string, args ...any) {
	hclog.Default().Error(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	hclog.Default().Info(fmt.Sprintf(format, args...))
}
