package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/kgellert/portal-chat/internal/chatclient"
	"github.com/kgellert/portal-chat/internal/chatview"
	"github.com/kgellert/portal-chat/internal/messages"
)

func main() {
	server := flag.String("server", "http://localhost:8082", "chat server base URL")
	id := flag.Int64("id", 0, "your participant id")
	admin := flag.Bool("admin", false, "connect as the administrator")
	flag.Parse()

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *id, *admin); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
}

type console struct {
	api     *chatclient.API
	conn    *chatclient.Conn
	view    *chatview.View
	adminID int64
	out     *printer
}

func run(ctx context.Context, server string, id int64, admin bool) error {
	api := chatclient.NewAPI(server, &http.Client{Timeout: 10 * time.Second})

	cfg, err := api.Config(ctx)
	if err != nil {
		return fmt.Errorf("load chat config: %w", err)
	}

	wsURL, err := socketURL(server)
	if err != nil {
		return err
	}

	out := newPrinter(os.Stdout)
	bell := chatview.NotifierFunc(func(m messages.Message) { out.bell(m) })

	var view *chatview.View
	if admin {
		view = chatview.New(chatview.MultiPeer,
			chatview.Self{ID: id, FullName: "Administrator"},
			chatview.WithNotifier(bell),
		)
	} else {
		view = chatview.New(chatview.SinglePeer,
			chatview.Self{ID: id, FullName: "You"},
			chatview.WithPeer(chatview.Entry{ID: cfg.AdminID, FullName: "Administrator", Avatar: cfg.DefaultAvatar}),
			chatview.WithNotifier(bell),
		)
	}

	incoming := make(chan messages.Message, 64)
	failures := make(chan chatclient.SendFailure, 16)

	conn := chatclient.Default()
	conn.OnMessage(func(m messages.Message) { incoming <- m })
	conn.OnFailure(func(f chatclient.SendFailure) { failures <- f })

	if err := conn.Connect(ctx, wsURL, chatclient.Identity{ID: id, IsAdmin: admin}); err != nil {
		return err
	}
	defer conn.Close()

	c := &console{api: api, conn: conn, view: view, adminID: cfg.AdminID, out: out}

	if admin {
		c.refreshRoster(ctx)
		out.help(true)
	} else {
		c.openApplicant(ctx)
		out.help(false)
	}

	input := make(chan string)
	go func() {
		defer close(input)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			input <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-conn.Done():
			return errors.New("disconnected from chat server")

		case m := <-incoming:
			c.receive(m)

		case f := <-failures:
			if c.view.Fail(f.ClientID, f.Code) {
				c.out.transcript(c.view)
			}
			c.out.warn("message not delivered: %s (%s)", f.Message, f.Code)

		case line, ok := <-input:
			if !ok {
				return nil
			}
			c.handle(ctx, line)
		}
	}
}

func (c *console) receive(m messages.Message) {
	switch c.view.Receive(m) {
	case chatview.Appended, chatview.Reconciled:
		c.out.transcript(c.view)
	case chatview.Counted:
		if c.view.Mode() == chatview.SinglePeer {
			c.out.transcript(c.view)
			c.out.title(c.view.Title())
		}
	}
}

func (c *console) handle(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	if c.view.Mode() == chatview.MultiPeer {
		switch cmd {
		case "/list":
			c.refreshRoster(ctx)
			return
		case "/open":
			c.open(ctx, arg)
			return
		case "/close":
			c.view.Close()
			c.out.info("Select an applicant to start chatting")
			return
		case "/search":
			c.out.roster(c.view.Filter(arg), time.Now())
			return
		}
	} else if cmd == "/focus" {
		c.view.Focus()
		c.out.title(c.view.Title())
		return
	}

	if cmd == "/help" {
		c.out.help(c.view.Mode() == chatview.MultiPeer)
		return
	}

	c.send(line)
}

func (c *console) send(text string) {
	req, err := c.view.Compose(text)
	if errors.Is(err, chatview.ErrEmptyMessage) {
		return
	}
	if err != nil {
		c.out.warn("%s", err)
		return
	}

	if err := c.conn.Send(req); err != nil {
		c.view.Fail(req.ClientID, "send_failed")
		c.out.warn("%s", err)
	}

	c.out.transcript(c.view)
}

func (c *console) refreshRoster(ctx context.Context) {
	roster, err := c.api.Roster(ctx, c.view.Self().ID)
	if err != nil {
		c.out.warn("load applicants: %s", err)
		return
	}

	c.view.LoadRoster(roster)
	c.out.roster(c.view.Roster(), time.Now())
}

func (c *console) open(ctx context.Context, arg string) {
	peerID, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		c.out.warn("usage: /open <applicant id>")
		return
	}

	if err := c.view.Select(peerID); err != nil {
		c.out.warn("%s", err)
		return
	}

	history, err := c.api.History(ctx, peerID, c.view.Self().ID, 0)
	if err != nil {
		c.view.FailHistory(peerID)
		c.out.warn("load history: %s", err)
		return
	}

	c.view.ApplyHistory(peerID, history)
	c.out.transcript(c.view)
}

func (c *console) openApplicant(ctx context.Context) {
	self := c.view.Self().ID

	if err := c.view.Select(c.adminID); err != nil {
		c.out.warn("%s", err)
		return
	}

	history, err := c.api.History(ctx, self, c.adminID, self)
	if err != nil {
		c.view.FailHistory(c.adminID)
		c.out.warn("load history: %s", err)
		return
	}

	c.view.ApplyHistory(c.adminID, history)
	c.out.transcript(c.view)
	c.out.title(c.view.Title())
}

func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	return u.String(), nil
}
