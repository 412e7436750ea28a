package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/kgellert/portal-chat/internal/chatview"
	"github.com/kgellert/portal-chat/internal/messages"
)

type printer struct {
	w      io.Writer
	own    *color.Color
	peer   *color.Color
	muted  *color.Color
	badge  *color.Color
	failed *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		own:    color.New(color.FgGreen),
		peer:   color.New(color.FgCyan),
		muted:  color.New(color.FgHiBlack),
		badge:  color.New(color.FgWhite, color.BgRed, color.Bold),
		failed: color.New(color.FgRed),
	}
}

func (p *printer) roster(entries []chatview.Entry, now time.Time) {
	if len(entries) == 0 {
		p.muted.Fprintln(p.w, "No applicants found")
		return
	}

	for _, e := range entries {
		last := "No messages yet"
		when := ""
		if e.HasLastMessage() {
			last = e.LastMessage
			when = chatview.TimeAgo(e.LastMessageTime, now)
		}

		fmt.Fprintf(p.w, "%5d  %-28s ", e.ID, e.FullName)
		if e.Unread > 0 {
			p.badge.Fprintf(p.w, " %s ", chatview.FormatUnread(e.Unread))
			fmt.Fprint(p.w, " ")
		}
		p.muted.Fprintf(p.w, "%s  %s\n", last, when)
	}
}

func (p *printer) transcript(v *chatview.View) {
	if v.Active() == 0 {
		return
	}
	if v.Loading() {
		p.muted.Fprintln(p.w, "Loading...")
		return
	}

	peer, _ := v.Peer(v.Active())
	p.muted.Fprintf(p.w, "--- %s ---\n", peer.FullName)

	lines := v.Transcript()
	if len(lines) == 0 {
		p.muted.Fprintln(p.w, "No messages yet. Start the conversation!")
		return
	}

	for _, l := range lines {
		stamp := l.CreatedAt.Local().Format("15:04")

		switch {
		case l.Failed:
			p.failed.Fprintf(p.w, "[%s] You: %s (not sent: %s)\n", stamp, l.Message.Message, l.FailCode)
		case l.Own && l.Pending:
			p.own.Fprintf(p.w, "[%s] You: %s ...\n", stamp, l.Message.Message)
		case l.Own:
			p.own.Fprintf(p.w, "[%s] You: %s\n", stamp, l.Message.Message)
		default:
			p.peer.Fprintf(p.w, "[%s] %s: %s\n", stamp, l.FullName, l.Message.Message)
		}
	}
}

func (p *printer) bell(m messages.Message) {
	fmt.Fprint(p.w, "\a")
	p.badge.Fprintf(p.w, " new message from %s ", m.FullName)
	fmt.Fprintln(p.w)
}

func (p *printer) title(t string) {
	p.muted.Fprintf(p.w, "== %s ==\n", t)
}

func (p *printer) info(format string, args ...any) {
	p.muted.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) warn(format string, args ...any) {
	p.failed.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) help(admin bool) {
	if admin {
		p.info("commands: /list, /open <id>, /close, /search <name>, /help; any other line is sent to the open applicant")
		return
	}
	p.info("type a message and press enter; /focus marks messages seen, /help shows this")
}
