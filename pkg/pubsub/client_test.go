package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"p1", "topics", " t1 ", "projects/p1/topics/t1"},
		{"p1", "topics", "projects/other/topics/t1", "projects/other/topics/t1"},
		{"p1", "subscriptions", "s1", "projects/p1/subscriptions/s1"},
		{"p1", "subscriptions", "projects/other/topics/t1", "projects/p1/subscriptions/projects/other/topics/t1"},
		{"p1", "topics", "", ""},
		{"", "topics", "t1", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.name), tc.name)
	}
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestDescribe(t *testing.T) {
	assert.NoError(t, describe("topic", "t", nil))
	assert.EqualError(t, describe("topic", "t", status.Error(codes.NotFound, "gone")), `topic "t" does not exist`)

	cause := status.Error(codes.PermissionDenied, "nope")
	err := describe("subscription", "s", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Nil(t, c.Subscriber("s"))
	assert.Nil(t, c.RequestsSubscriber())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.ErrorIs(t, c.EnsureSubscription(context.Background(), "s"), errNotInitialized)
	assert.NoError(t, c.Close())
}
