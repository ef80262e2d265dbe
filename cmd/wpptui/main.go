package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/wppcrm/internal/inbox"
	"github.com/matheus3301/wppcrm/internal/logging"
	"github.com/matheus3301/wppcrm/internal/rpc"
	"github.com/matheus3301/wppcrm/internal/session"
	"github.com/matheus3301/wppcrm/internal/tui"
	"github.com/matheus3301/wppcrm/internal/tui/client"
	"github.com/matheus3301/wppcrm/internal/tui/model"
	"go.uber.org/zap"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (default from config, then \"main\")")
	noSpawn := flag.Bool("no-spawn", false, "fail instead of starting wppd when it is not running")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := session.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := session.EnsureDir(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "session dir: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to tview, so logs only go to the session's TUI log.
	logger, err := logging.NewFile(session.TUILogPath(sessionName), "wpptui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	socketPath := session.SocketPath(sessionName)
	if !probeDaemon(socketPath) {
		if *noSpawn {
			fmt.Fprintf(os.Stderr, "no daemon for session %q at %s\n", sessionName, socketPath)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "starting wppd for session %q...\n", sessionName)
		if err := spawnDaemon(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "start wppd: %v\n", err)
			os.Exit(1)
		}
		if err := waitForDaemon(socketPath, 15*time.Second); err != nil {
			fmt.Fprintf(os.Stderr, "wppd: %v (see %s)\n", err, session.LogPath(sessionName))
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	tuning := inbox.Config{
		InitialPageSize: cfg.Inbox.InitialPageSize,
		MorePageSize:    cfg.Inbox.MorePageSize,
		MatchWindow:     cfg.Inbox.MatchWindow.Duration,
	}
	vm := model.NewViewModel(model.FromClient(c), tuning, logger)

	logger.Info("tui started", zap.String("session", sessionName), zap.String("socket", socketPath))
	app := tui.NewApp(vm, logger)
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon reports whether a daemon answers a status call on the socket.
// A socket file alone may be left over from a crash.
func probeDaemon(socketPath string) bool {
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	return err == nil
}

// spawnDaemon starts wppd next to this binary, or from PATH, and leaves it
// running after the TUI exits.
func spawnDaemon(sessionName string) error {
	bin := "wppd"
	if exe, err := os.Executable(); err == nil {
		if sibling := filepath.Join(filepath.Dir(exe), "wppd"); fileExists(sibling) {
			bin = sibling
		}
	}
	cmd := exec.Command(bin, "--session", sessionName)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// waitForDaemon probes with a growing delay until the daemon answers or
// timeout passes.
func waitForDaemon(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	delay := 100 * time.Millisecond
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return nil
		}
		time.Sleep(delay)
		delay = min(delay*2, time.Second)
	}
	return fmt.Errorf("no answer on %s after %s", socketPath, timeout)
}
