package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func adminRequest(method, baseURL, path string, timeout time.Duration) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8095", "server base url")
	_ = fs.Parse(args)
	adminRequest(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
}

func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8095", "server base url")
	_ = fs.Parse(args)
	adminRequest(http.MethodGet, *baseURL, "/admin/v1/players", 5*time.Second)
}

func backupCmd(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8095", "server base url")
	_ = fs.Parse(args)
	adminRequest(http.MethodPost, *baseURL, "/admin/v1/backup", 10*time.Second)
}

func gameruleCmd(args []string) {
	fs := flag.NewFlagSet("gamerule", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8095", "server base url")
	set := fs.String("enable_scarify", "", "true or false to change the rule (empty: show)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*set) == "" {
		adminRequest(http.MethodGet, *baseURL, "/admin/v1/gamerule", 5*time.Second)
		return
	}
	q := url.Values{"enable_scarify": {strings.TrimSpace(*set)}}
	adminRequest(http.MethodPost, *baseURL, "/admin/v1/gamerule?"+q.Encode(), 5*time.Second)
}
