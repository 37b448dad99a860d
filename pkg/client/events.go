package client

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robostack/swervechar/pkg/events"
)

// SubscribeEvents opens the daemon's SSE endpoint and delivers events on the
// returned channel. The subscription reconnects on transient failures and
// ends when ctx is cancelled, closing the channel.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	ch := make(chan events.Event, 16)

	go func() {
		defer close(ch)
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.streamEvents(ctx, ch); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Debug("event stream dropped, reconnecting")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	return ch
}

func (c *Client) streamEvents(ctx context.Context, ch chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Debugf("failed to close event stream body: %v", err)
		}
	}()

	var name string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if name == "" {
				continue
			}
			select {
			case ch <- events.Event{Name: name, Data: []byte(data)}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case line == "":
			name = ""
		}
	}
	return scanner.Err()
}
