package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"skyrise.dev/internal/persistence/blobmirror"
)

type mirrorRuntime struct {
	enabled      bool
	rotateLayout string
	mirror       *blobmirror.Mirror
}

func buildMirrorRuntime(ctx context.Context, dataDir string, logger *log.Logger) (*mirrorRuntime, error) {
	enabled := envBool("SKYRISE_MIRROR", false)
	if !enabled {
		return &mirrorRuntime{enabled: false}, nil
	}

	cfg := blobmirror.Config{
		Region:          strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_REGION")),
		Bucket:          strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_BUCKET")),
		Endpoint:        strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_ENDPOINT")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_SECRET_ACCESS_KEY")),
		PathStyle:       envBool("SKYRISE_MIRROR_PATH_STYLE", false),
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("SKYRISE_MIRROR=true but SKYRISE_MIRROR_BUCKET is empty")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, fmt.Errorf("SKYRISE_MIRROR_ACCESS_KEY_ID and SKYRISE_MIRROR_SECRET_ACCESS_KEY must be set together")
	}

	client, err := blobmirror.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimSpace(os.Getenv("SKYRISE_MIRROR_PREFIX"))
	workers := envInt("SKYRISE_MIRROR_UPLOAD_WORKERS", 2)
	queueCap := envInt("SKYRISE_MIRROR_QUEUE_CAPACITY", 2048)
	waitMS := envInt("SKYRISE_MIRROR_ENQUEUE_WAIT_MS", 25)
	m := blobmirror.NewMirror(client, dataDir, prefix, workers, queueCap, time.Duration(waitMS)*time.Millisecond, logger)

	return &mirrorRuntime{
		enabled:      true,
		rotateLayout: "2006-01-02-15-04", // minute-grained segments while mirroring
		mirror:       m,
	}, nil
}

func (r *mirrorRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *mirrorRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled || r.mirror == nil {
		return
	}
	r.mirror.Enqueue(localPath)
}

func (r *mirrorRuntime) Stats() blobmirror.Stats {
	if r == nil || r.mirror == nil {
		return blobmirror.Stats{}
	}
	return r.mirror.Stats()
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

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
