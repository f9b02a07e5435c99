// Package redis keeps a score-ordered index of published packages in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cast"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// Index stores the latest summary of each package.
//
//	<prefix>:packages          sorted set, member = package, score = quality score
//	<prefix>:package:<name>    hash with the summary fields
type Index struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// NewIndex connects to addr and verifies the connection with PING.
func NewIndex(ctx context.Context, addr, password string, db int, prefix string, logger *slog.Logger) (*Index, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "climate"
	}
	return &Index{client: client, prefix: prefix, logger: logger}, nil
}

func (i *Index) setKey() string { return i.prefix + ":packages" }

func (i *Index) summaryKey(pkg string) string { return i.prefix + ":package:" + pkg }

// Index records s as the latest version of its package.
func (i *Index) Index(ctx context.Context, s domain.PackageSummary) error {
	_, err := i.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZAdd(ctx, i.setKey(), &goredis.Z{Score: s.QualityScore, Member: s.Package})
		p.HSet(ctx, i.summaryKey(s.Package), toFields(s))
		return nil
	})
	if err != nil {
		return fmt.Errorf("index package %s: %w", s.Package, err)
	}
	i.logger.Debug("package indexed", "package", s.Package, "quality_score", s.QualityScore)
	return nil
}

// Search returns summaries scoring at least minScore, highest first.
func (i *Index) Search(ctx context.Context, minScore float64) ([]domain.PackageSummary, error) {
	members, err := i.client.ZRevRangeByScore(ctx, i.setKey(), &goredis.ZRangeBy{
		Min: cast.ToString(minScore),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	cmds := make([]*goredis.StringStringMapCmd, len(members))
	_, err = i.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for n, m := range members {
			cmds[n] = p.HGetAll(ctx, i.summaryKey(m))
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	out := make([]domain.PackageSummary, 0, len(members))
	for n, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			i.logger.Warn("index entry without summary", "package", members[n])
			continue
		}
		out = append(out, fromFields(members[n], fields))
	}
	return out, nil
}

// Close releases the connection pool.
func (i *Index) Close() error { return i.client.Close() }

func toFields(s domain.PackageSummary) map[string]any {
	elements := make([]string, len(s.Elements))
	for n, e := range s.Elements {
		elements[n] = string(e)
	}
	return map[string]any{
		"top_hash":      s.TopHash,
		"quality_score": s.QualityScore,
		"row_count":     s.RowCount,
		"station_count": s.StationCount,
		"elements":      strings.Join(elements, ","),
		"updated_at":    s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func fromFields(pkg string, f map[string]string) domain.PackageSummary {
	s := domain.PackageSummary{
		Package:      pkg,
		TopHash:      f["top_hash"],
		QualityScore: cast.ToFloat64(f["quality_score"]),
		RowCount:     cast.ToInt(f["row_count"]),
		StationCount: cast.ToInt(f["station_count"]),
	}
	if raw := f["elements"]; raw != "" {
		for _, e := range strings.Split(raw, ",") {
			s.Elements = append(s.Elements, domain.Element(e))
		}
	}
	if t, err := time.Parse(time.RFC3339, f["updated_at"]); err == nil {
		s.UpdatedAt = t
	}
	return s
}
