// Command adminctl is a flag-based operator CLI for the coordinator's admin
// HTTP surface. It holds no broker/KV connection of its own: every
// subcommand is a plain HTTP call against a running orchestrator or
// notifier process.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := flag.NewFlagSet("", flag.ExitOnError)
	url := baseURL.String("url", envOr("ORCHESTRATOR_URL", "http://localhost:8080"), "orchestrator base URL")
	token := baseURL.String("token", os.Getenv("ADMIN_TOKEN"), "admin token")

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "pnl":
		runPnL(baseURL, url, token, args)
	case "halt":
		_ = baseURL.Parse(args)
		mustPost(*url+"/admin/orchestrate/halt", *token, nil)
	case "unhalt":
		_ = baseURL.Parse(args)
		mustPost(*url+"/admin/orchestrate/unhalt", *token, nil)
	case "run":
		symbol := baseURL.String("symbol", "", "symbol to trade")
		_ = baseURL.Parse(args)
		if *symbol == "" {
			fmt.Fprintln(os.Stderr, "run requires -symbol")
			os.Exit(1)
		}
		mustPost(*url+"/orchestrate/run", "", map[string]string{"symbol": *symbol})
	case "pending":
		_ = baseURL.Parse(args)
		runPending(*url, *token)
	case "dlq":
		runDLQ(baseURL, url, token, args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `adminctl <pnl|halt|unhalt|run|pending|dlq> [flags]

  pnl status               show today's PnL
  pnl reset                reset today's PnL
  halt                     halt new pipeline admission
  unhalt                   resume admission
  run -symbol BTC-USD      admit one new pipeline
  pending                  show stream backlog + in-flight requests
  dlq list -stream S       list a stream's dead letters
  dlq requeue -stream S -id ID   requeue one dead letter`)
}

func runPnL(fs *flag.FlagSet, url, token *string, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "pnl requires a subcommand: status|reset")
		os.Exit(1)
	}
	switch args[0] {
	case "status":
		_ = fs.Parse(args[1:])
		var status map[string]any
		mustGet(*url+"/pnl/status", "", &status)
		printKV(status)
	case "reset":
		_ = fs.Parse(args[1:])
		var status map[string]any
		mustPostDecode(*url+"/admin/pnl/reset", *token, nil, &status)
		printKV(status)
	default:
		fmt.Fprintln(os.Stderr, "unknown pnl subcommand")
		os.Exit(1)
	}
}

func runPending(url, token string) {
	var summary struct {
		Streams []struct {
			Stream  string `json:"Stream"`
			Group   string `json:"Group"`
			Pending int64  `json:"Pending"`
		} `json:"streams"`
		InFlight []map[string]any `json:"inFlight"`
	}
	mustGetAuth(url+"/admin/streams/pending", token, &summary)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Stream", "Group", "Pending")
	for _, s := range summary.Streams {
		table.Append(s.Stream, s.Group, fmt.Sprintf("%d", s.Pending))
	}
	table.Render()
	fmt.Printf("in-flight requests: %d\n", len(summary.InFlight))
}

func runDLQ(fs *flag.FlagSet, url, token *string, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dlq requires a subcommand: list|requeue")
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		stream := fs.String("stream", "", "source stream name")
		_ = fs.Parse(args[1:])
		if *stream == "" {
			fmt.Fprintln(os.Stderr, "dlq list requires -stream")
			os.Exit(1)
		}
		var items []map[string]any
		mustGetAuth(*url+"/admin/streams/dlq?stream="+*stream, *token, &items)

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Error")
		for _, item := range items {
			entry, _ := item["Entry"].(map[string]any)
			table.Append(fmt.Sprintf("%v", item["ID"]), fmt.Sprintf("%v", entry["error"]))
		}
		table.Render()
	case "requeue":
		stream := fs.String("stream", "", "source stream name")
		id := fs.String("id", "", "dead-letter entry id")
		_ = fs.Parse(args[1:])
		if *stream == "" || *id == "" {
			fmt.Fprintln(os.Stderr, "dlq requeue requires -stream and -id")
			os.Exit(1)
		}
		mustPost(*url+"/admin/streams/dlq/requeue", *token, map[string]string{"stream": *stream, "id": *id})
	default:
		fmt.Fprintln(os.Stderr, "unknown dlq subcommand")
		os.Exit(1)
	}
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func mustGet(url, token string, out any) {
	mustGetAuth(url, token, out)
}

func mustGetAuth(url, token string, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	must(err)
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	resp, err := httpClient.Do(req)
	must(err)
	defer resp.Body.Close()
	must(json.NewDecoder(resp.Body).Decode(out))
}

func mustPost(url, token string, body any) {
	var out map[string]any
	mustPostDecode(url, token, body, &out)
	printKV(out)
}

func mustPostDecode(url, token string, body any, out any) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		must(err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	must(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	resp, err := httpClient.Do(req)
	must(err)
	defer resp.Body.Close()
	must(json.NewDecoder(resp.Body).Decode(out))
}

func printKV(m map[string]any) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	for k, v := range m {
		table.Append(k, fmt.Sprintf("%v", v))
	}
	table.Render()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
