package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"tipvault/core/types"
	"tipvault/native/tipping"
)

func wsURL(httpURL, query string) string {
	url := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws/events"
	if query != "" {
		url += "?" + query
	}
	return url
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) types.Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var evt types.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return evt
}

func TestEventFeedStreamsAppliedEvents(t *testing.T) {
	rig := newTestRig(t, ServerConfig{AuthToken: testAuthToken}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(rig.server.URL, ""), nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	creatorKey := genKey(t)
	if resp := rig.call(t, "tipping_register", true, registerTx(t, creatorKey, 0, "ada")); resp.Error != nil {
		t.Fatalf("register failed: %+v", resp.Error)
	}

	evt := readEvent(t, ctx, conn)
	if evt.Type != tipping.EventTypeCreatorRegistered {
		t.Fatalf("expected registration event, got %q", evt.Type)
	}
	if evt.Attribute("creator") != keyAddr(creatorKey).String() {
		t.Fatalf("unexpected creator attribute %q", evt.Attribute("creator"))
	}
}

func TestEventFeedFiltersByTypePrefix(t *testing.T) {
	supporterKey := genKey(t)
	supporter := keyAddr(supporterKey)
	rig := newTestRig(t, ServerConfig{AuthToken: testAuthToken}, map[string]string{
		supporter.String(): "10000000",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(rig.server.URL, "type=tipping.tip."), nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	creatorKey := genKey(t)
	creator := keyAddr(creatorKey)
	if resp := rig.call(t, "tipping_register", true, registerTx(t, creatorKey, 0, "ada")); resp.Error != nil {
		t.Fatalf("register failed: %+v", resp.Error)
	}
	tip := tipTx(t, supporterKey, rig, 0, creator, 2_000_000, "keep writing")
	if resp := rig.call(t, "tipping_tip", true, tip); resp.Error != nil {
		t.Fatalf("tip failed: %+v", resp.Error)
	}

	// The registration event must be filtered out; the first delivery is
	// the tip itself.
	evt := readEvent(t, ctx, conn)
	if evt.Type != tipping.EventTypeTipSent {
		t.Fatalf("expected tip event, got %q", evt.Type)
	}
	if evt.Attribute("message") != "keep writing" {
		t.Fatalf("unexpected message attribute %q", evt.Attribute("message"))
	}
	if evt.Attribute("amount") != "2000000" {
		t.Fatalf("unexpected amount attribute %q", evt.Attribute("amount"))
	}
}
