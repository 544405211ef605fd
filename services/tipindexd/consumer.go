package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"nhooyr.io/websocket"

	"tipvault/core/types"
	"tipvault/native/tipping"
)

const (
	consumerBackoffMin = time.Second
	consumerBackoffMax = 30 * time.Second
	cursorEvents       = "events_consumed"
)

// Consumer follows the node's websocket event feed and materialises tipping
// events into the store. The feed is live-only, so a restart re-indexes from
// whatever the node emits next; rows carry their own identity and replays are
// harmless.
type Consumer struct {
	feedURL string
	store   *SQLiteStore
	metrics *indexMetrics
	logger  *slog.Logger
}

func NewConsumer(feedURL string, store *SQLiteStore, metrics *indexMetrics, logger *slog.Logger) *Consumer {
	return &Consumer{feedURL: feedURL, store: store, metrics: metrics, logger: logger}
}

// Run dials the feed and consumes events until the context is cancelled,
// reconnecting with exponential backoff on any failure.
func (c *Consumer) Run(ctx context.Context) {
	backoff := consumerBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.metrics.feedErrors.Inc()
			c.logger.Warn("event feed interrupted", "error", err, "retryIn", backoff.String())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > consumerBackoffMax {
			backoff = consumerBackoffMax
		}
		c.metrics.reconnects.Inc()
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	target, err := url.Parse(c.feedURL)
	if err != nil {
		return err
	}
	query := target.Query()
	query.Set("type", "tipping.")
	target.RawQuery = query.Encode()

	conn, _, err := websocket.Dial(ctx, target.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "consumer stopped")
	c.logger.Info("event feed connected", "url", target.String())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var evt types.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.metrics.feedErrors.Inc()
			c.logger.Warn("undecodable feed event", "error", err)
			continue
		}
		c.apply(ctx, evt)
	}
}

func (c *Consumer) apply(ctx context.Context, evt types.Event) {
	c.metrics.events.WithLabelValues(evt.Type).Inc()
	if err := c.store.BumpCursor(ctx, cursorEvents); err != nil {
		c.logger.Warn("cursor update failed", "error", err)
	}

	switch evt.Type {
	case tipping.EventTypeTipSent:
		id, err := c.store.InsertTip(ctx, TipRow{
			Creator:      evt.Attribute("creator"),
			Supporter:    evt.Attribute("supporter"),
			Amount:       evt.Attribute("amount"),
			Fee:          evt.Attribute("fee"),
			CreatorShare: evt.Attribute("creatorShare"),
			CollabShare:  evt.Attribute("collabShare"),
			Message:      evt.Attribute("message"),
		})
		if err != nil {
			c.logger.Error("index tip", "error", err)
			return
		}
		c.metrics.rows.WithLabelValues("tips").Inc()
		c.logger.Debug("tip indexed", "id", id, "creator", evt.Attribute("creator"))
	case tipping.EventTypeCreatorRegistered, tipping.EventTypeProfileUpdated:
		if err := c.store.UpsertCreator(ctx, CreatorRow{
			Address:  evt.Attribute("creator"),
			Name:     evt.Attribute("name"),
			Category: evt.Attribute("category"),
		}); err != nil {
			c.logger.Error("index creator", "error", err)
			return
		}
		c.metrics.rows.WithLabelValues("creators").Inc()
	case tipping.EventTypeBadgeMinted:
		tier, err := strconv.ParseUint(evt.Attribute("tier"), 10, 8)
		if err != nil {
			c.logger.Warn("badge event with bad tier", "tier", evt.Attribute("tier"))
			return
		}
		if err := c.store.InsertBadge(ctx, BadgeRow{
			TokenID:   evt.Attribute("tokenId"),
			Creator:   evt.Attribute("creator"),
			Supporter: evt.Attribute("supporter"),
			Tier:      uint8(tier),
			TierName:  evt.Attribute("tierName"),
		}); err != nil {
			c.logger.Error("index badge", "error", err)
			return
		}
		c.metrics.rows.WithLabelValues("badges").Inc()
	}
}
