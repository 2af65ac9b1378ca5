package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/friday/backend/pkg/client"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	defaultURL := os.Getenv("FRIDAY_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	baseURL := flag.String("url", defaultURL, "server base URL")
	userID := flag.String("user", "", "user id; empty sends anonymous turns")
	useWS := flag.Bool("ws", false, "use the WebSocket endpoint instead of SSE")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-turn timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("cookie jar: %v", err)
	}
	c := client.New(*baseURL, client.WithHTTPClient(&http.Client{Jar: jar}))
	conv := client.NewConversation(c, *userID)

	fmt.Fprintf(os.Stderr, "connected to %s (%s); type a message, Ctrl-D to quit\n", *baseURL, transportName(*useWS))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, *timeout)
		var sendErr error
		if *useWS {
			_, sendErr = conv.SendWS(turnCtx, text, renderLine)
		} else {
			_, sendErr = conv.Send(turnCtx, text, renderLine)
		}
		cancel()
		fmt.Println()

		if sendErr != nil {
			log.Printf("[chatcli] turn failed: %v", sendErr)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// renderLine redraws the whole assistant line on every update.
func renderLine(m client.Message) {
	marker := ""
	if m.Streaming {
		marker = " ▍"
	}
	fmt.Printf("\r\033[2KFriday: %s%s", m.Content, marker)
}

func transportName(ws bool) string {
	if ws {
		return "websocket"
	}
	return "sse"
}
