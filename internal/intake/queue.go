package intake

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// StreamQueue hands accepted payment requests to the worker over a redis
// stream.
type StreamQueue struct {
	rdb    *redis.Client
	stream string
}

func NewStreamQueue(rdb *redis.Client, stream string) *StreamQueue {
	return &StreamQueue{rdb: rdb, stream: stream}
}

func (q *StreamQueue) Enqueue(ctx context.Context, data []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
}

// EnsureGroup creates the consumer group if it does not exist yet.
func (q *StreamQueue) EnsureGroup(ctx context.Context, group string) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, group, "$").Err()
	if err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists" {
		return nil
	}
	return err
}
