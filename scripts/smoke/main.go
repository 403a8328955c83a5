// Command smoke exercises a running booking API instance and reports
// per-endpoint status. Intended for post-deploy checks, not load testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type target struct {
	method   string
	path     string
	critical bool
	want     int
}

func main() {
	var (
		base    string
		teacher string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&teacher, "teacher", "", "teacher id used for availability checks")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	today := time.Now().UTC().Format("2006-01-02")
	targets := []target{
		{method: http.MethodGet, path: "/health", critical: true, want: http.StatusOK},
		{method: http.MethodGet, path: "/ready", critical: true, want: http.StatusOK},
		{method: http.MethodGet, path: "/metrics", critical: false, want: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/lessons", critical: true, want: http.StatusOK},
	}
	if teacher != "" {
		targets = append(targets,
			target{
				method:   http.MethodGet,
				path:     fmt.Sprintf("/api/v1/teachers/%s/availability?from=%s&to=%s", teacher, today, today),
				critical: true,
				want:     http.StatusOK,
			},
			target{
				method:   http.MethodGet,
				path:     fmt.Sprintf("/api/v1/teachers/%s/slots", teacher),
				critical: false,
				want:     http.StatusOK,
			},
		)
	}

	client := &http.Client{Timeout: timeout}
	failedCritical := false

	for _, tgt := range targets {
		req, err := http.NewRequest(tgt.method, base+tgt.path, nil)
		if err != nil {
			log.Fatalf("build request for %s: %v", tgt.path, err)
		}

		start := time.Now()
		resp, err := client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("FAIL %-6s %-60s error=%v\n", tgt.method, tgt.path, err)
			if tgt.critical {
				failedCritical = true
			}
			continue
		}
		resp.Body.Close()

		status := "OK  "
		if resp.StatusCode != tgt.want {
			status = "FAIL"
			if tgt.critical {
				failedCritical = true
			}
		}
		fmt.Printf("%s %-6s %-60s status=%d want=%d took=%s\n", status, tgt.method, tgt.path, resp.StatusCode, tgt.want, elapsed.Round(time.Millisecond))
	}

	if failedCritical {
		os.Exit(1)
	}
}
