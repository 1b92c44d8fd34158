package logger

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// instanceID picks the explicit id, then INSTANCE_ID or POD_NAME from the
// environment, then hostname plus a short random suffix. Several realtime
// nodes on one host must stay distinguishable in logs.
func instanceID(explicit string) string {
	for _, v := range []string{explicit, os.Getenv("INSTANCE_ID"), os.Getenv("POD_NAME")} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "realtime"
	}
	return hn + "-" + uuid.NewString()[:8]
}

func processAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Int("pid", os.Getpid()),
		slog.String("go", runtime.Version()),
		slog.Time("started_at", time.Now()),
	}
}
