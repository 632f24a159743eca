// Package pubsub announces freshly published feeds on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/monitor-noticias/internal/news"
)

// FeedUpdated is the message body published after each run.
type FeedUpdated struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Articles    int            `json:"articles"`
	PerSource   map[string]int `json:"per_source"`
	Failed      []string       `json:"failed_sources,omitempty"`
	Artifacts   []string       `json:"artifacts,omitempty"`
}

// NewFeedUpdated summarizes feed for notification.
func NewFeedUpdated(feed news.CombinedFeed, artifacts []string) FeedUpdated {
	msg := FeedUpdated{
		RunID:       feed.RunID,
		GeneratedAt: feed.GeneratedAt,
		Articles:    len(feed.Articles),
		PerSource:   make(map[string]int),
		Artifacts:   artifacts,
	}
	for source, articles := range feed.BySource() {
		msg.PerSource[source] = len(articles)
	}
	for _, r := range feed.Sources {
		if r.Failed() {
			msg.Failed = append(msg.Failed, r.Source)
		}
	}
	return msg
}

// Notifier publishes FeedUpdated messages to one topic.
type Notifier struct {
	topic *pubsub.Topic
}

// New creates a Notifier for topic.
func New(topic *pubsub.Topic) (*Notifier, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Notifier{topic: topic}, nil
}

// Notify publishes a summary of feed and waits for the server ack.
func (n *Notifier) Notify(ctx context.Context, feed news.CombinedFeed, artifacts []string) (string, error) {
	data, err := json.Marshal(NewFeedUpdated(feed, artifacts))
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": feed.RunID,
			"event":  "feed_updated",
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages.
func (n *Notifier) Close() {
	n.topic.Stop()
}
