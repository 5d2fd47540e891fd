// Command chattest opens many websocket clients against the chat stream,
// posts messages over HTTP and reports how many events were delivered.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// Metrics tracks the run.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := pflag.String("host", "localhost:8375", "API server host")
	token := pflag.String("token", "", "access token (see: admin mint)")
	clients := pflag.Int("clients", 20, "number of concurrent websocket clients")
	duration := pflag.Duration("duration", 30*time.Second, "test duration")
	interval := pflag.Duration("interval", time.Second, "delay between posted messages")
	pflag.Parse()

	if *token == "" {
		log.Fatal("--token is required")
	}

	log.Printf("Target: %s, clients: %d, duration: %v", *host, *clients, *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *token, i, stopChan, &wg)
		time.Sleep(20 * time.Millisecond)
	}

	wg.Add(1)
	go runSender(*host, *token, *interval, stopChan, &wg)

	select {
	case <-time.After(*duration):
		log.Println("Test duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stopChan)
	wg.Wait()
	printMetrics()
}

func runClient(host, token string, id int, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		log.Printf("client %d: dial failed: %v", id, err)
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
		}
	}()

	select {
	case <-stop:
	case <-done:
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

func runSender(host, token string, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	for n := 0; ; n++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		body, _ := json.Marshal(map[string]string{"text": fmt.Sprintf("chattest %d", n)})
		req, err := http.NewRequest(http.MethodPost, "http://"+host+"/api/messages", bytes.NewReader(body))
		if err != nil {
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := httpClient.Do(req)
		if err != nil {
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			atomic.AddInt64(&metrics.Errors, 1)
			log.Printf("send failed: %s", resp.Status)
			continue
		}
		atomic.AddInt64(&metrics.MessagesSent, 1)
	}
}

func printMetrics() {
	fmt.Println("Results:")
	fmt.Printf("  connections: %d attempted, %d ok, %d failed\n",
		metrics.ConnectionsAttempted, metrics.ConnectionsSuccess, metrics.ConnectionsFailed)
	fmt.Printf("  messages sent: %d\n", metrics.MessagesSent)
	fmt.Printf("  events received: %d\n", metrics.EventsReceived)
	fmt.Printf("  errors: %d\n", metrics.Errors)
}
