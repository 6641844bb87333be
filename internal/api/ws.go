package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pollInterval is how often a stream checks the job for new lines.
var pollInterval = 200 * time.Millisecond

// StreamRunLogs streams run log lines over WebSocket and closes with the
// final job status once everything was sent.
func (s *Server) StreamRunLogs(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	offset := 0
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// read the state first so no line appended before the end is lost
			done := job.Done()
			lines := job.LogsSince(offset)
			for _, line := range lines {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
				offset++
			}
			if done && len(lines) == 0 {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, job.State()))
				return
			}
		}
	}
}
