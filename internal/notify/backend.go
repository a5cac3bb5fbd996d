package notify

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/availability-holds/internal/config"
	"github.com/hackgods/availability-holds/internal/hold"
)

// FromConfig builds the notifier named by NOTIFY_BACKEND. The returned close
// func is never nil. rdb may be nil unless the backend is redis.
func FromConfig(cfg config.Config, rdb *redis.Client) (hold.Notifier, func() error, error) {
	noop := func() error { return nil }

	switch cfg.NotifyBackend {
	case "redis":
		if rdb == nil {
			return nil, noop, fmt.Errorf("redis notify backend needs a redis client")
		}
		return NewRedisPublisher(rdb, cfg.NotifyChannel), noop, nil
	case "kafka":
		k, err := NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, noop, err
		}
		return k, k.Close, nil
	case "log", "":
		return NewLogNotifier(nil), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}
