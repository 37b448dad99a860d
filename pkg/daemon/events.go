package daemon

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is only reachable over the local unix socket.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamEvents serves daemon events as server-sent events. The stream stays
// open until the client disconnects or the subscriber channel is closed.
func streamEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

// wsMessage is the JSON envelope sent on the websocket endpoint.
type wsMessage struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// wsEvents forwards daemon events over a websocket connection.
func wsEvents(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logrus.Debugf("failed to close websocket: %v", err)
		}
	}()

	// Drain reads so close frames from the client are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			msg := wsMessage{Name: ev.Name, Data: string(ev.Data)}
			if err := conn.WriteJSON(msg); err != nil {
				logrus.WithError(err).Debug("websocket write failed, dropping subscriber")
				return
			}
		}
	}
}
