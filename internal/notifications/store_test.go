package notifications

import (
	"io"
	"log/slog"
	"testing"
)

func TestDecodeSubscriptionsSkipsUnreadableSendConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rows := []subscriptionRow{
		{sub: Subscription{ChannelID: "good-1", League: "pwhl", Active: true}, sendConfig: []byte(`{"goals":true,"final":true}`)},
		{sub: Subscription{ChannelID: "broken", League: "pwhl", Active: true}, sendConfig: []byte(`{"goals":`)},
		{sub: Subscription{ChannelID: "wrong-type", League: "pwhl", Active: true}, sendConfig: []byte(`{"goals":"yes"}`)},
		{sub: Subscription{ChannelID: "good-2", League: "pwhl", Active: true}},
	}

	subs := decodeSubscriptions(rows, logger)
	if len(subs) != 2 {
		t.Fatalf("expected 2 readable subscriptions, got %d: %+v", len(subs), subs)
	}
	if subs[0].ChannelID != "good-1" || !subs[0].SendConfig.Goals || !subs[0].SendConfig.Final || subs[0].SendConfig.Preview {
		t.Fatalf("unexpected first subscription %+v", subs[0])
	}
	if subs[1].ChannelID != "good-2" || subs[1].SendConfig != (SendConfig{}) {
		t.Fatalf("missing send config should decode to the zero config, got %+v", subs[1])
	}
}

func TestDecodeSubscriptionsEmpty(t *testing.T) {
	if subs := decodeSubscriptions(nil, slog.Default()); len(subs) != 0 {
		t.Fatalf("expected no subscriptions, got %+v", subs)
	}
}
