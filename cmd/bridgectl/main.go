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

	"github.com/joho/godotenv"
	"github.com/mojilabs/mojibridge/internal/config"
	"github.com/mojilabs/mojibridge/internal/session"
	"github.com/mojilabs/mojibridge/internal/store"
)

func main() {
	configFlag := flag.String("config", session.ConfigPath(), "path to config.toml")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "health":
		cmdHealth(cfg, *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bridgectl send <chat-id> <text>")
			os.Exit(1)
		}
		cmdSend(cfg, args[1], args[2])
	case "chats":
		cmdChats(cfg, *jsonFlag)
	case "resolve":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: bridgectl resolve <identifier>")
			os.Exit(1)
		}
		cmdResolve(cfg, args[1], *jsonFlag)
	case "seed":
		cmdSeed(cfg)
	case "init":
		cmdInit(*configFlag, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: bridgectl [--config <path>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  health               Show daemon status and counters")
	fmt.Fprintln(os.Stderr, "  send <chat> <text>   Send a message through the daemon")
	fmt.Fprintln(os.Stderr, "  chats                List conversations in the message store")
	fmt.Fprintln(os.Stderr, "  resolve <id>         Resolve an identifier to a conversation")
	fmt.Fprintln(os.Stderr, "  seed                 Create a development fixture store")
	fmt.Fprintln(os.Stderr, "  init                 Write a default config file")
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func cmdHealth(cfg *config.Config, jsonOut bool) {
	resp, err := httpClient().Get("http://" + cfg.ListenAddr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", cfg.ListenAddr, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		fmt.Println(string(bytes.TrimSpace(raw)))
		return
	}

	var health struct {
		Status         string `json:"status"`
		Cursor         int64  `json:"cursor"`
		PendingRetries int    `json:"pendingRetries"`
		Counters       struct {
			Processed      uint64 `json:"processed"`
			Abandoned      uint64 `json:"abandoned"`
			Dispatched     uint64 `json:"dispatched"`
			DispatchFailed uint64 `json:"dispatchFailed"`
		} `json:"counters"`
	}
	if err := json.Unmarshal(raw, &health); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid health response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Status:     %s\n", health.Status)
	fmt.Printf("Cursor:     %d\n", health.Cursor)
	fmt.Printf("Pending:    %d\n", health.PendingRetries)
	fmt.Printf("Processed:  %d\n", health.Counters.Processed)
	fmt.Printf("Abandoned:  %d\n", health.Counters.Abandoned)
	fmt.Printf("Dispatched: %d (%d failed)\n", health.Counters.Dispatched, health.Counters.DispatchFailed)
}

func cmdSend(cfg *config.Config, chatID, text string) {
	body, _ := json.Marshal(map[string]string{"chatId": chatID, "text": text})
	resp, err := httpClient().Post("http://"+cfg.ListenAddr+"/send", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon at %s: %v\n", cfg.ListenAddr, err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "error: send failed: %s\n", bytes.TrimSpace(raw))
		os.Exit(1)
	}
	fmt.Println("Sent.")
}

func openStore(cfg *config.Config) *store.DB {
	db, err := store.OpenReadOnly(cfg.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return db
}

func cmdChats(cfg *config.Config, jsonOut bool) {
	db := openStore(cfg)
	defer func() { _ = db.Close() }()

	chats, err := db.ListChats(50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(chats)
		return
	}
	if len(chats) == 0 {
		fmt.Println("No conversations found.")
		return
	}
	for _, c := range chats {
		name := c.DisplayName
		if name == "" {
			name = c.Identifier
		}
		fmt.Printf("%-30s %s\n", name, c.GUID)
	}
}

func cmdResolve(cfg *config.Config, identifier string, jsonOut bool) {
	db := openStore(cfg)
	defer func() { _ = db.Close() }()

	chat, err := db.ResolveChat(identifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(chat)
		return
	}
	fmt.Printf("GUID:       %s\n", chat.GUID)
	fmt.Printf("Identifier: %s\n", chat.Identifier)
	fmt.Printf("Name:       %s\n", chat.DisplayName)
}

// cmdSeed builds a fixture store next to the session so the bridge can run
// without a real message database.
func cmdSeed(cfg *config.Config) {
	if err := session.EnsureDir(cfg.Session); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	path := session.FixturePath(cfg.Session)
	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := db.SeedDemo(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fixture store created at %s\n", path)
	fmt.Printf("Point the bridge at it with MOJI_STORE_PATH=%s\n", path)
}

func cmdInit(path string, cfg *config.Config) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "error: %s already exists\n", path)
		os.Exit(1)
	}
	if err := config.Save(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", path)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
