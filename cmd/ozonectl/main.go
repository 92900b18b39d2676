// Package main implements ozonectl, a thin command-line client for an
// ozoned daemon's data and admin HTTP API.
//
// ozonectl is the scriptable equivalent of the curl invocations documented
// in ozoned's own doc comments — put/get/delete a key, or run one of the
// operator admin commands — without having to remember the exact paths and
// methods.
//
// Example usage:
//
//	ozonectl -addr http://localhost:7070 put user:123 hello
//	ozonectl -addr http://localhost:7070 get user:123
//	ozonectl -addr http://localhost:7070 delete user:123
//	ozonectl -addr http://localhost:7070 admin gc
//	ozonectl -addr http://localhost:7070 admin ping
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	addr := flag.String("addr", "http://127.0.0.1:7070", "ozoned base address")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}

	switch cmd := args[0]; cmd {
	case "put":
		runPut(client, *addr, args[1:])
	case "get":
		runGet(client, *addr, args[1:])
	case "delete":
		runDelete(client, *addr, args[1:])
	case "admin":
		runAdmin(client, *addr, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ozonectl [-addr URL] [-timeout DURATION] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  put <key> <value>")
	fmt.Fprintln(os.Stderr, "  get <key>")
	fmt.Fprintln(os.Stderr, "  delete <key>")
	fmt.Fprintln(os.Stderr, "  admin <gc|clear-caches|dump-cache|dump-file-states|state|ping|new-live-file>")
}

// runPut issues PUT /v1/data/{key} with value as the raw request body.
func runPut(client *http.Client, addr string, args []string) {
	if len(args) != 2 {
		logFatal("put requires <key> <value>")
		return
	}
	key, value := args[0], args[1]
	req, err := http.NewRequest(http.MethodPut, joinURL(addr, "/v1/data/", key), strings.NewReader(value))
	if err != nil {
		logFatal("building request: %v", err)
		return
	}
	do(client, req)
}

// runGet issues GET /v1/data/{key} and prints the response body.
func runGet(client *http.Client, addr string, args []string) {
	if len(args) != 1 {
		logFatal("get requires <key>")
		return
	}
	req, err := http.NewRequest(http.MethodGet, joinURL(addr, "/v1/data/", args[0]), nil)
	if err != nil {
		logFatal("building request: %v", err)
		return
	}
	do(client, req)
}

// runDelete issues DELETE /v1/data/{key}.
func runDelete(client *http.Client, addr string, args []string) {
	if len(args) != 1 {
		logFatal("delete requires <key>")
		return
	}
	req, err := http.NewRequest(http.MethodDelete, joinURL(addr, "/v1/data/", args[0]), nil)
	if err != nil {
		logFatal("building request: %v", err)
		return
	}
	do(client, req)
}

// runAdmin issues POST /v1/admin/{command} and prints the JSON response.
func runAdmin(client *http.Client, addr string, args []string) {
	if len(args) != 1 {
		logFatal("admin requires a command, see -h")
		return
	}
	req, err := http.NewRequest(http.MethodPost, joinURL(addr, "/v1/admin/", args[0]), nil)
	if err != nil {
		logFatal("building request: %v", err)
		return
	}
	do(client, req)
}

// do executes req, prints the response body to stdout, and exits non-zero
// on a non-2xx status.
func do(client *http.Client, req *http.Request) {
	resp, err := client.Do(req)
	if err != nil {
		logFatal("request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logFatal("reading response: %v", err)
		return
	}
	if len(body) > 0 {
		os.Stdout.Write(body)
		if body[len(body)-1] != '\n' {
			fmt.Println()
		}
	}
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func joinURL(base, prefix, key string) string {
	return strings.TrimSuffix(base, "/") + prefix + key
}
