package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	tiktok "github.com/RavensCloud/tiktok-collector"
)

// sseFrame renders one event as "event: <name>\ndata: <json>\n\n".
type sseFrame struct {
	event tiktok.Event
}

func (f sseFrame) Render(w http.ResponseWriter) error {
	f.WriteContentType(w)
	data, err := json.Marshal(f.event.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", f.event.Name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event.Name, data)
	return err
}

func (sseFrame) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/event-stream")
	}
}
