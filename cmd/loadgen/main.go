// Command loadgen emits traffic from two fake tenants against a running
// proxy: tenant A one short snippet every ~3s, tenant B a single large
// block every ~4.5s, printing the proxy-reported latency for each. Each
// tenant sends one request at a time; there are no concurrent bursts.
package main

import (
	"bytes"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

const proxyPath = "/proxy_classify"

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func randomSnippet() string {
	if rand.Float64() < 0.5 {
		return "def foo(): pass"
	}
	return "hello world"
}

type proxyResponse struct {
	Result         string  `json:"result"`
	ProxyLatencyMS float64 `json:"proxy_latency_ms"`
}

func post(client *http.Client, proxyURL, tenant, body string) (proxyResponse, int, error) {
	req, err := http.NewRequest(http.MethodPost, proxyURL+proxyPath, bytes.NewReader([]byte(body)))
	if err != nil {
		return proxyResponse{}, 0, err
	}
	req.Header.Set("X-Customer-Id", tenant)
	resp, err := client.Do(req)
	if err != nil {
		return proxyResponse{}, 0, err
	}
	defer resp.Body.Close()
	var out proxyResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out, resp.StatusCode, nil
}

func tenantA(client *http.Client, proxyURL string) {
	for {
		snippet := randomSnippet()[:5]
		t0 := time.Now()
		out, status, err := post(client, proxyURL, "A", snippet)
		if err != nil {
			log.Println("A: error", err)
			time.Sleep(3 * time.Second)
			continue
		}
		lat := time.Since(t0)
		if status != http.StatusOK {
			log.Printf("A: status %d", status)
		} else {
			log.Printf("A: snippet done in %6.1fms (proxy said %.1fms)", lat.Seconds()*1000, out.ProxyLatencyMS)
		}
		time.Sleep(3 * time.Second)
	}
}

func tenantB(client *http.Client, proxyURL string) {
	block := "class X:\n" + strings.Repeat("    pass\n", 80)
	for {
		t0 := time.Now()
		out, status, err := post(client, proxyURL, "B", block)
		if err != nil {
			log.Println("B: error", err)
			time.Sleep(4500 * time.Millisecond)
			continue
		}
		lat := time.Since(t0)
		if status != http.StatusOK {
			log.Printf("B: status %d", status)
		} else {
			log.Printf("B: big block done in %6.1fms (proxy said %.1fms)", lat.Seconds()*1000, out.ProxyLatencyMS)
		}
		time.Sleep(4500 * time.Millisecond)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	proxyURL := getenv("PROXY_URL", "http://localhost:8080")

	client := &http.Client{Timeout: 30 * time.Second}
	done := make(chan struct{})

	go tenantA(client, proxyURL)
	go tenantB(client, proxyURL)

	<-done
}
