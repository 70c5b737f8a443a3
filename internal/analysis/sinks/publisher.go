package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/crawler"
)

// Notifier publishes a site.analyzed event per result.
type Notifier struct {
	publisher crawler.Publisher
	topic     string
}

// NewNotifier returns a sink that publishes to topic.
func NewNotifier(publisher crawler.Publisher, topic string) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &Notifier{publisher: publisher, topic: topic}, nil
}

// Name implements analysis.Sink.
func (s *Notifier) Name() string { return "pubsub" }

// Write publishes the event and waits for the server ack.
func (s *Notifier) Write(ctx context.Context, res analysis.Result) error {
	payload := map[string]any{
		"event":          "site.analyzed",
		"run_id":         res.RunID,
		"site":           res.Site,
		"model":          res.Model,
		"analysis":       res.Analysis,
		"input_tokens":   res.InputTokens,
		"input_hash":     res.InputHash,
		"document_count": res.DocumentCount,
		"timestamp":      res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		return fmt.Errorf("publish analysis: %w", err)
	}
	return nil
}

// Close is a no-op; the publisher is owned by the caller.
func (s *Notifier) Close(context.Context) error { return nil }
