// Command voicegate-client is a terminal client for a voicegate gateway. It
// streams microphone audio up, plays assistant audio back, and prints
// transcripts and UI payloads as they arrive.
//
// Usage:
//
//	voicegate-client [-url ws://localhost:8080/ws]
//
// Controls:
//
//	/t <text>   Send a text message
//	q           Quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/navigo-ai/voicegate/pkg/gateway/live/protocol"
	"github.com/navigo-ai/voicegate/sdk"
)

func main() {
	urlFlag := flag.String("url", "ws://localhost:8080/ws", "gateway live endpoint")
	resumeFlag := flag.String("resume", "", "session resumption handle from a previous run")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	playback, err := sdk.NewPlayback()
	if err != nil {
		log.Fatalf("speaker: %v", err)
	}
	defer playback.Close()

	endpoint := *urlFlag
	if *resumeFlag != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "resume_handle=" + *resumeFlag
	}

	client, err := sdk.Dial(ctx, endpoint, sdk.Handlers{
		OnAudio: func(pcm []byte) {
			playback.Write(pcm)
		},
		OnInterrupted: func() {
			playback.Flush()
		},
		OnText: func(text string, final bool) {
			if final {
				fmt.Printf("\nassistant: %s\n", text)
			}
		},
		OnUserTranscript: func(text string, final bool) {
			if final {
				fmt.Printf("\nyou: %s\n", text)
			}
		},
		OnSessionID: func(id string) {
			fmt.Printf("\n[session handle: %s]\n", id)
		},
		OnUI: func(kind string, data map[string]any) {
			printUI(kind, data)
		},
		OnError: func(code, message string) {
			fmt.Printf("\n[error] %s: %s\n", code, message)
		},
		OnClose: func(err error) {
			if err != nil {
				fmt.Printf("\n[disconnected: %v]\n", err)
			}
			cancel()
		},
	})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	mic, err := sdk.NewCapture()
	if err != nil {
		log.Fatalf("microphone: %v", err)
	}
	defer mic.Close()

	go func() {
		// 20ms of 16kHz mono PCM16 per frame.
		buf := make([]byte, protocol.InputSampleRateHz*2/50)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := mic.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				if err := client.SendAudio(buf[:n]); err != nil {
					return
				}
			}
		}
	}()

	fmt.Println("Listening... (/t <text> to type, q to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "q":
			_ = client.SendEnd()
			return
		case strings.HasPrefix(input, "/t "):
			text := strings.TrimSpace(strings.TrimPrefix(input, "/t "))
			if text == "" {
				continue
			}
			if err := client.SendText(text); err != nil {
				fmt.Printf("[send failed: %v]\n", err)
			}
		default:
			fmt.Println("unknown command; use /t <text> or q")
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func printUI(kind string, data map[string]any) {
	switch kind {
	case "ui_card":
		fmt.Printf("\n┌── %v\n│ %v\n", data["title"], data["content"])
		if footer, ok := data["footer"]; ok && footer != "" {
			fmt.Printf("└── %v\n", footer)
		}
	case "ui_list":
		fmt.Printf("\n%v:\n", data["title"])
		if items, ok := data["items"].([]any); ok {
			for _, item := range items {
				fmt.Printf("  - %v\n", item)
			}
		}
	default:
		fmt.Printf("\n[%v] %v\n", data["title"], data["content"])
	}
}
