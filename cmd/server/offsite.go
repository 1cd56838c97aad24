package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"scarify.ai/internal/persistence/offsite"
	"scarify.ai/internal/serverconfig"
)

// buildMirror returns nil when offsite mirroring is off. SCARIFY_OFFSITE
// overrides offsite.enabled.
func buildMirror(cfg serverconfig.Config, logger *log.Logger) (*offsite.Mirror, error) {
	if !envBool("SCARIFY_OFFSITE", cfg.Offsite.Enabled) {
		return nil, nil
	}
	accessKeyID := strings.TrimSpace(os.Getenv("SCARIFY_OFFSITE_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("SCARIFY_OFFSITE_SECRET_ACCESS_KEY"))
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("offsite enabled but SCARIFY_OFFSITE_ACCESS_KEY_ID/SCARIFY_OFFSITE_SECRET_ACCESS_KEY are not set")
	}
	client, err := offsite.NewClient(offsite.ClientConfig{
		Endpoint:        cfg.Offsite.Endpoint,
		Bucket:          cfg.Offsite.Bucket,
		Region:          cfg.Offsite.Region,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("offsite mirror: %s/%s prefix=%q", cfg.Offsite.Endpoint, cfg.Offsite.Bucket, cfg.Offsite.Prefix)
	return offsite.NewMirror(client, offsite.MirrorOptions{
		DataDir: cfg.DataDir,
		Prefix:  cfg.Offsite.Prefix,
		Workers: cfg.Offsite.Workers,
		Logger:  logger,
	}), nil
}
