package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"scarify.ai/internal/protocol"
)

var (
	welcomeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	broadcastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Lines typed at the prompt are sent as EXEC. A line starting with '?' asks
// for completions of the rest, e.g. "?scarify add St".
func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8095/v1/console", "console ws url")
		operator = flag.String("operator", "console", "operator name")
		level    = flag.Int("level", 4, "requested permission level")
		token    = flag.String("token", os.Getenv("SCARIFY_CONSOLE_TOKEN"), "console token")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[console] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Operator:        *operator,
		PermissionLevel: *level,
	}
	if strings.TrimSpace(*token) != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			printMessage(logger, msg)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	seq := 0
	for {
		select {
		case <-stop:
			return
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			seq++
			id := "c" + strconv.Itoa(seq)
			var v any
			if rest, ok := strings.CutPrefix(line, "?"); ok {
				v = protocol.CompleteMsg{Type: protocol.TypeComplete, ProtocolVersion: protocol.Version, ID: id, Line: rest}
			} else {
				v = protocol.ExecMsg{Type: protocol.TypeExec, ProtocolVersion: protocol.Version, ID: id, Line: line}
			}
			if err := conn.WriteJSON(v); err != nil {
				logger.Printf("send: %v", err)
				return
			}
		}
	}
}

func printMessage(logger *log.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		logger.Printf("session %s", w.SessionID)
		fmt.Println(welcomeStyle.Render(fmt.Sprintf("connected as %s, online: %s", w.Operator, strings.Join(w.Online, ", "))))

	case protocol.TypeResult:
		var r protocol.ResultMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return
		}
		for _, f := range r.Feedback {
			fmt.Println(f.Text)
		}

	case protocol.TypeCompletions:
		var c protocol.CompletionsMsg
		if err := json.Unmarshal(msg, &c); err != nil {
			return
		}
		fmt.Println(strings.Join(c.Suggestions, "  "))

	case protocol.TypeFeedback:
		var f protocol.FeedbackMsg
		if err := json.Unmarshal(msg, &f); err != nil {
			return
		}
		fmt.Println(broadcastStyle.Render("[" + f.From + "] " + f.Text))

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return
		}
		fmt.Println(errorStyle.Render(e.Message + " (" + e.Code + ")"))
	}
}
