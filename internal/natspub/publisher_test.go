package natspub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"vidstream/internal/events"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	fail     bool
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("nats: connection closed")
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestRunPublishesBySubject(t *testing.T) {
	fc := &fakeConn{}
	p := &Publisher{conn: fc}

	feed := make(chan events.Event, 2)
	like := events.NewEvent(events.TypeLike, 1)
	like.VideoID = 4
	feed <- like
	feed <- events.NewEvent(events.TypeUnfollow, 2)
	close(feed)

	p.Run(context.Background(), feed)

	require.Equal(t, []string{"engagement.like", "engagement.unfollow"}, fc.subjects)
	var got events.Event
	require.NoError(t, json.Unmarshal(fc.payloads[0], &got))
	require.Equal(t, like, got)

	p.Close()
	require.True(t, fc.closed)
}

func TestRunSurvivesPublishErrors(t *testing.T) {
	fc := &fakeConn{fail: true}
	p := &Publisher{conn: fc}

	feed := make(chan events.Event, 1)
	feed <- events.NewEvent(events.TypeFollow, 1)
	close(feed)

	p.Run(context.Background(), feed)
	require.Empty(t, fc.subjects)
}
