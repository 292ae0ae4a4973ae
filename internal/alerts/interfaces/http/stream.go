package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	alertapp "coldchain-cloud/internal/alerts/application"
	"coldchain-cloud/internal/auth"
)

type streamClient struct {
	ch        chan []byte
	companyID string
}

// SSEBroker fans out alert lifecycle events to connected clients.
// Clients bound to a company only receive that company's events.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[*streamClient]struct{})}
}

// Notify implements AlertNotifier.
func (b *SSEBroker) Notify(_ context.Context, event alertapp.AlertEvent) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.broadcast(event.Alert.CompanyID, payload)
}

// Subscribe registers a client. An empty companyID receives everything.
func (b *SSEBroker) Subscribe(companyID string) *streamClient {
	if b == nil {
		return nil
	}
	client := &streamClient{ch: make(chan []byte, 16), companyID: companyID}
	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	return client
}

// Unsubscribe removes a client.
func (b *SSEBroker) Unsubscribe(client *streamClient) {
	if b == nil || client == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; !ok {
		return
	}
	delete(b.clients, client)
	close(client.ch)
}

// broadcast delivers under the mutex so a send can never race the close
// in Unsubscribe. Sends are non-blocking; slow clients drop frames.
func (b *SSEBroker) broadcast(companyID string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		if client.companyID != "" && client.companyID != companyID {
			continue
		}
		select {
		case client.ch <- payload:
		default:
		}
	}
}

// StreamHandler serves the SSE alert stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/alerts/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := h.broker.Subscribe(auth.CompanyIDFromContext(r.Context()))
	if client == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(client)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload, ok := <-client.ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: alert\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
