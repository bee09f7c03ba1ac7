package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EndeeLabs/endee-web-ui/internal/controller"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

const (
	jobsWriteWait  = 10 * time.Second
	jobsPingPeriod = 30 * time.Second
)

// jobsFrame is one message on the jobs stream.
type jobsFrame struct {
	Jobs    controller.Status[[]vectorstore.BackupJob] `json:"jobs"`
	Polling bool                                       `json:"polling"`
}

// jobsStream pushes the jobs view over a websocket. The first frame is a fresh
// refresh; later frames follow the session's poller until the client leaves.
func (h *consoleHandler) jobsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	jobs := sess.Console.Jobs

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("jobs stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := jobs.Subscribe()
	defer cancel()

	// the client sends nothing; reading only surfaces the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("jobs stream read ended", "error", err)
				}
				return
			}
		}
	}()

	send := func() error {
		sess.Touch()
		conn.SetWriteDeadline(time.Now().Add(jobsWriteWait))
		return conn.WriteJSON(jobsFrame{Jobs: jobs.Status(), Polling: jobs.Polling()})
	}

	jobs.Refresh(r.Context())
	if err := send(); err != nil {
		return
	}

	ping := time.NewTicker(jobsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case _, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(jobsWriteWait))
				return
			}
			if err := send(); err != nil {
				h.logger.Debug("jobs stream write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(jobsWriteWait)); err != nil {
				return
			}
		}
	}
}
