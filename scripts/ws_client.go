// Package main runs a demo WebSocket client: it records a morning of passages for
// one car and prints the live feed while the server prices them.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type streamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws/passages"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m streamMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Type == "connected" {
				close(ready)
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Data))
		}
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		log.Fatal("no connected message from server")
	}

	day := time.Now().In(time.UTC).Format("2006-01-02")
	for _, clock := range []string{"06:05", "06:40", "07:15", "15:45", "17:20"} {
		body, _ := json.Marshal(map[string]string{
			"vehicleId":   "DEMO001",
			"vehicleType": "car",
			"timestamp":   day + "T" + clock + ":00+02:00",
		})
		resp, err := http.Post(base+"/api/passages", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("POST %s -> %d", clock, resp.StatusCode)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
