package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/workhub-social/chatsync/internal/backend"
	"github.com/workhub-social/chatsync/internal/model"
	"github.com/workhub-social/chatsync/pkg/logger"
)

const (
	// StreamName is the name of the change-feed stream.
	StreamName = "CHANGES"

	// SubjectPrefix is the prefix for all change subjects.
	SubjectPrefix = "chg"
)

// ChangeFeed publishes committed row changes to JetStream and delivers them
// to filtered subscribers. It implements backend.Feed.
type ChangeFeed struct {
	client *Client
	logger *logger.Logger
}

var _ backend.Feed = (*ChangeFeed)(nil)

// NewChangeFeed creates a change feed on client.
func NewChangeFeed(client *Client, log *logger.Logger) *ChangeFeed {
	return &ChangeFeed{client: client, logger: log.Named("changefeed")}
}

// EnsureStream ensures the change stream exists.
func (f *ChangeFeed) EnsureStream(ctx context.Context) error {
	js := f.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  2 * time.Minute,
		Description: "Committed row changes of messages, conversations, posts, comments, likes and profiles",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Subject returns the subject for a change of table.
func Subject(table model.Table, typ model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, table, typ)
}

// FilterSubject returns the subject matching filter's table and event type.
// Column filters are applied on delivery.
func FilterSubject(filter model.Filter) string {
	if filter.Event == "" || filter.Event == model.EventAny {
		return fmt.Sprintf("%s.%s.*", SubjectPrefix, filter.Table)
	}
	return Subject(filter.Table, filter.Event)
}

// Publish publishes ev. The event id is the JetStream message id, so a
// retried publish is stored once.
func (f *ChangeFeed) Publish(ctx context.Context, ev model.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	_, err = f.client.JetStream().Publish(ctx, Subject(ev.Table, ev.Type), data, jetstream.WithMsgID(ev.ID))
	if err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe delivers every change committed from now on that matches filter.
// fn runs on the consumer's goroutine, one event at a time, in stream order.
func (f *ChangeFeed) Subscribe(ctx context.Context, filter model.Filter, fn backend.Handler) (backend.Subscription, error) {
	js := f.client.JetStream()

	stream, err := js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream info: %w", err)
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{FilterSubject(filter)},
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    info.State.LastSeq + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev model.ChangeEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			f.logger.Warn("dropping undecodable change event",
				zap.String("subject", msg.Subject()),
				zap.Error(err),
			)
			return
		}
		if !filter.Matches(&ev) {
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	return &subscription{cc: cc}, nil
}

type subscription struct {
	cc jetstream.ConsumeContext
}

func (s *subscription) Unsubscribe() error {
	s.cc.Stop()
	return nil
}
