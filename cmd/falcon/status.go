package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

// runStatus polls a running falcon serve instance's /health, the way
// the teacher's status.go reports project state with colored
// pass/fail markers.
func runStatus(args []string) int {
	fs := newFlagSet("status")
	addr := fs.String("addr", "http://localhost:8080", "Base URL of a running falcon serve instance")
	asJSON := fs.Bool("json", false, "Print the raw /health response")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		color.Red("falcon status: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		color.Red("falcon status: %v\n", err)
		return 1
	}

	if *asJSON {
		fmt.Println(string(body))
		return 0
	}

	var health struct {
		Status     string `json:"status"`
		Version    string `json:"version"`
		ActiveJobs int    `json:"active_jobs"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		fmt.Fprintln(os.Stderr, string(body))
		return 1
	}

	marker := color.GreenString("ok")
	if health.Status != "ok" {
		marker = color.RedString(health.Status)
	}
	fmt.Printf("status:      %s\n", marker)
	fmt.Printf("version:     %s\n", health.Version)
	fmt.Printf("active jobs: %d\n", health.ActiveJobs)
	return 0
}
