package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zafarze/gat-sub000/pkg/config"
)

// Namespace prefixes every report key written by the service.
const Namespace = "gat:report"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins a report name and a set of filter params into a deterministic cache key.
// Params are sorted so that equal filter combinations share one entry; empty values are dropped.
func Key(report string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(Namespace)
	b.WriteString(":")
	b.WriteString(report)
	for _, name := range names {
		b.WriteString(":")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(params[name])
	}
	return b.String()
}

// ReportPattern matches cached payloads of one report, or of every report when report is empty.
func ReportPattern(report string) string {
	if report == "" {
		return Namespace + ":*"
	}
	return fmt.Sprintf("%s:%s*", Namespace, report)
}
