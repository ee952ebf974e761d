package pubsub

import (
	"context"
	"testing"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"acme", "orders", "projects/acme/topics/orders"},
		{"acme", " orders ", "projects/acme/topics/orders"},
		{"", "orders", ""},
		{"acme", "", ""},
		{"", "projects/other/topics/orders", "projects/other/topics/orders"},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientAndPublisher(t *testing.T) {
	var c *Client
	if c.OrdersPublisher() != nil {
		t.Fatalf("nil client must not return a publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected error pinging nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing nil client: %v", err)
	}

	var p *TopicPublisher
	if _, err := p.Publish(context.Background(), []byte("x"), nil); err == nil {
		t.Fatalf("expected error publishing with nil publisher")
	}
	p.Stop()
}
