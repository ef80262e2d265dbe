package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/lock"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/session"
	"github.com/matheus3301/wppcrm/internal/tui/client"
	qrcode "github.com/skip2/go-qrcode"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	limitFlag := flag.Int("limit", 50, "page size for chats and messages")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// sessions list does not need a daemon.
	if args[0] == "sessions" {
		if len(args) < 2 || args[1] != "list" {
			fmt.Fprintln(os.Stderr, "usage: wppctl sessions list")
			os.Exit(1)
		}
		cmdSessionsList(*jsonFlag)
		return
	}

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fatal(err)
	}

	if holder, running := lock.Probe(session.Dir(sessionName)); !running {
		fmt.Fprintf(os.Stderr, "error: no daemon running for session %q (start it with: wppd --session %s)\n", sessionName, sessionName)
		os.Exit(1)
	} else if holder.Owner != "" && holder.Owner != "wppd" {
		fmt.Fprintf(os.Stderr, "warning: session lock held by %s\n", holder)
	}

	c, err := client.New(session.SocketPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// Streaming commands run until interrupted or finished.
	switch args[0] {
	case "auth":
		cmdAuth(c)
		return
	case "watch":
		cmdWatch(c, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "pair":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wppctl pair <phone>")
			os.Exit(1)
		}
		cmdPair(ctx, c, args[1])
	case "logout":
		cmdLogout(ctx, c, *jsonFlag)
	case "chats":
		cmdChats(ctx, c, int32(*limitFlag), *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wppctl messages <chat>")
			os.Exit(1)
		}
		cmdMessages(ctx, c, args[1], int32(*limitFlag), *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wppctl send <chat> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wppctl [--session <name>] [--json] [--limit n] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                Show session status")
	fmt.Fprintln(os.Stderr, "  auth                  Pair by scanning QR codes in the terminal")
	fmt.Fprintln(os.Stderr, "  pair <phone>          Pair with a phone code instead of QR")
	fmt.Fprintln(os.Stderr, "  logout                Log the session out")
	fmt.Fprintln(os.Stderr, "  chats                 List conversations")
	fmt.Fprintln(os.Stderr, "  messages <chat>       List the newest messages of a chat")
	fmt.Fprintln(os.Stderr, "  send <chat> <text>    Send a text message")
	fmt.Fprintln(os.Stderr, "  watch                 Stream gateway events")
	fmt.Fprintln(os.Stderr, "  sessions list         List known sessions")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session:   %s\n", resp.Session)
	fmt.Printf("Status:    %s (%s)\n", resp.Status, resp.StatusMessage)
	if resp.PhoneNumber != "" {
		fmt.Printf("Phone:     +%s\n", resp.PhoneNumber)
	}
	fmt.Printf("Connected: %v\n", resp.Connected)
	fmt.Printf("Instance:  %s\n", resp.InstanceID)
	fmt.Printf("Chats:     %d\n", resp.ChatCount)
	fmt.Printf("Messages:  %d\n", resp.MessageCount)
	if resp.OutboxQueued > 0 {
		fmt.Printf("Outbox:    %d queued\n", resp.OutboxQueued)
	}
	fmt.Printf("Uptime:    %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
}

func cmdAuth(c *client.Client) {
	stream, err := c.Session.StartAuth(context.Background(), &rpc.StartAuthRequest{})
	if err != nil {
		fatal(err)
	}
	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatal(err)
		}
		switch evt.EventType {
		case "qr_code":
			qr, err := qrcode.New(evt.QRCode, qrcode.Low)
			if err != nil {
				fatal(err)
			}
			fmt.Println(qr.ToSmallString(false))
			fmt.Println("Scan with WhatsApp > Linked devices > Link a device")
		case "authenticated":
			fmt.Println("Authenticated.")
			return
		default:
			fmt.Fprintf(os.Stderr, "%s: %s\n", evt.EventType, evt.Message)
			os.Exit(1)
		}
	}
}

func cmdPair(ctx context.Context, c *client.Client, phone string) {
	resp, err := c.Session.PairPhone(ctx, &rpc.PairPhoneRequest{Phone: phone})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Pairing code: %s\n", resp.Code)
	fmt.Println("Enter it in WhatsApp > Linked devices > Link with phone number")
}

func cmdLogout(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Session.Logout(ctx, &rpc.LogoutRequest{})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Success: %v - %s\n", resp.Success, resp.Message)
}

func cmdChats(ctx context.Context, c *client.Client, limit int32, jsonOut bool) {
	resp, err := c.Chat.ListChats(ctx, &rpc.ListChatsRequest{Pagination: &rpc.Pagination{Limit: limit}})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Chats) == 0 {
		fmt.Println("No chats.")
		return
	}
	for _, ch := range resp.Chats {
		name := ch.Name
		if name == "" {
			name = ch.JID
		}
		unread := ""
		if ch.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d)", ch.UnreadCount)
		}
		fmt.Printf("%-30s %s%s  %s\n", truncate(name, 30), formatMs(ch.LastMessageAtUnixMs), unread, truncate(ch.LastMessagePreview, 60))
	}
}

func cmdMessages(ctx context.Context, c *client.Client, chat string, limit int32, jsonOut bool) {
	resp, err := c.Message.ListMessages(ctx, &rpc.ListMessagesRequest{ChatJID: chat, Pagination: &rpc.Pagination{Limit: limit}})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	// Newest first on the wire; print oldest first.
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		who := m.SenderName
		if m.FromMe {
			who = "me"
		} else if who == "" {
			who = m.SenderJID
		}
		body := m.Body
		if body == "" {
			body = "[" + m.MessageType + "]"
		}
		fmt.Printf("%s  %-16s %s\n", formatMs(m.TimestampUnixMs), truncate(who, 16), body)
	}
}

func cmdSend(ctx context.Context, c *client.Client, chat, text string, jsonOut bool) {
	resp, err := c.Message.SendText(ctx, &rpc.SendTextRequest{
		ClientMsgID: uuid.NewString(),
		ChatJID:     chat,
		Text:        text,
	})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("%s %s\n", resp.Status, resp.ID)
}

func cmdWatch(c *client.Client, jsonOut bool) {
	stream, err := c.Events.Watch(context.Background())
	if err != nil {
		fatal(err)
	}
	for {
		env, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			line, _ := json.Marshal(env)
			fmt.Println(string(line))
			continue
		}
		fmt.Printf("%s  %-16s %s\n", formatMs(env.OccurredAtUnixMs), env.Kind, truncate(string(env.Data), 100))
	}
}

func cmdSessionsList(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fatal(err)
	}

	type entry struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Running bool   `json:"running"`
		PID     int    `json:"pid,omitempty"`
	}
	out := make([]entry, 0, len(names))
	for _, n := range names {
		holder, running := lock.Probe(session.Dir(n))
		e := entry{Name: n, Path: session.Dir(n), Running: running}
		if running {
			e.PID = holder.PID
		}
		out = append(out, e)
	}

	if jsonOut {
		outputJSON(out)
		return
	}
	if len(out) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, e := range out {
		state := "stopped"
		if e.Running {
			state = fmt.Sprintf("running, PID %d", e.PID)
		}
		fmt.Printf("%-20s %s (%s)\n", e.Name, e.Path, state)
	}
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
