package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/forPelevin/hlshorts/internal/logging"
	"github.com/forPelevin/hlshorts/internal/types"
)

const (
	// StreamMaxLen caps the event stream; trimming is approximate.
	StreamMaxLen = 1000
	emitTimeout  = 2 * time.Second
)

type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Stream   string
}

// client is the part of the go-redis API the sink uses.
type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// Sink publishes progress events on a pub/sub channel and appends them to a
// capped stream so late subscribers can replay a batch.
type Sink struct {
	rdb     client
	channel string
	stream  string
	log     *slog.Logger
}

// New connects and pings the server before returning.
func New(ctx context.Context, opts Options, log *slog.Logger) (*Sink, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return newSink(rdb, opts, log), nil
}

func newSink(rdb client, opts Options, log *slog.Logger) *Sink {
	return &Sink{rdb: rdb, channel: opts.Channel, stream: opts.Stream, log: logging.OrDiscard(log)}
}

// Emit never fails the caller; delivery errors are logged.
func (s *Sink) Emit(ctx context.Context, ev types.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("encode progress event", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if s.channel != "" {
		if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
			s.log.Warn("redis publish failed", "channel", s.channel, "err", err)
		}
	}
	if s.stream != "" {
		err := s.rdb.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.stream,
			MaxLen: StreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"type":    string(ev.Type),
				"batch":   ev.BatchID,
				"payload": string(payload),
			},
		}).Err()
		if err != nil {
			s.log.Warn("redis xadd failed", "stream", s.stream, "err", err)
		}
	}
}

func (s *Sink) Close() error { return s.rdb.Close() }
