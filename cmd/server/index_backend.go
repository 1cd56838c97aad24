package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"scarify.ai/internal/console"
	"scarify.ai/internal/persistence/indexdb"
	"scarify.ai/internal/scarify"
	"scarify.ai/internal/serverconfig"
)

type runtimeIndex interface {
	scarify.AuditSink
	console.ReadModel
	Stats() indexdb.Stats
	Close() error
}

// openRuntimeIndex picks the read-model backend. SCARIFY_INDEX_BACKEND
// overrides server.yaml.
func openRuntimeIndex(cfg serverconfig.Config, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SCARIFY_INDEX_BACKEND")))
	if backend == "" {
		backend = cfg.Index.Backend
	}

	switch backend {
	case serverconfig.IndexNone, "off", "disabled":
		logger.Printf("index backend disabled")
		return nil, nil
	case serverconfig.IndexSQLite:
		return indexdb.OpenSQLite(cfg.IndexPath())
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
