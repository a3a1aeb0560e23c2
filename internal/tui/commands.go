package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/session"
)

const helpText = "/sticker <name> · /stickers · /emoji [category] [number] · /image <path> · /logout · /quit"

// handleCommand runs a slash command typed into the chat input.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	name, args := parts[0], strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch name {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/help":
		m.input.Reset()
		cmd := m.showNotice(info(helpText))
		return m, cmd

	case "/stickers":
		m.input.Reset()
		if m.stickers == nil || len(m.stickers.Names()) == 0 {
			cmd := m.showNotice(info("No stickers available"))
			return m, cmd
		}
		cmd := m.showNotice(info("Stickers: " + strings.Join(m.stickers.Names(), ", ")))
		return m, cmd

	case "/sticker", "/s":
		if args == "" {
			cmd := m.showNotice(failure("Usage: /sticker <name>"))
			return m, cmd
		}
		if m.stickers == nil {
			cmd := m.showNotice(failure("No stickers available"))
			return m, cmd
		}
		st, ok := m.stickers.Sticker(args)
		if !ok {
			cmd := m.showNotice(failure(fmt.Sprintf("Unknown sticker %q", args)))
			return m, cmd
		}
		glyph := st.Glyph
		return m, m.call("sticker", func() error { return m.ctl.SendChatMessage(glyph) })

	case "/emoji", "/e":
		return m.emoji(strings.Fields(args))

	case "/image", "/img":
		if args == "" {
			cmd := m.showNotice(failure("Usage: /image <path>"))
			return m, cmd
		}
		m.input.Reset()
		return m, m.sendImage(args)

	case "/logout":
		m.input.Reset()
		ctl, timeout := m.ctl, m.cfg.RequestTimeout
		return m, m.call("logout", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return ctl.Logout(ctx)
		})

	default:
		cmd := m.showNotice(failure(fmt.Sprintf("Unknown command %s, try /help", name)))
		return m, cmd
	}
}

// emoji lists the categories, lists one category, or puts the numbered
// emoji of a category into the input line to be sent with the message.
func (m Model) emoji(args []string) (tea.Model, tea.Cmd) {
	if m.stickers == nil || len(m.stickers.Emoji) == 0 {
		m.input.Reset()
		cmd := m.showNotice(failure("No emoji available"))
		return m, cmd
	}
	if len(args) == 0 {
		m.input.Reset()
		cmd := m.showNotice(info("Emoji: " + strings.Join(m.stickers.Categories(), ", ")))
		return m, cmd
	}

	c, ok := m.stickers.Category(args[0])
	if !ok {
		cmd := m.showNotice(failure(fmt.Sprintf("Unknown emoji category %q", args[0])))
		return m, cmd
	}
	if len(args) == 1 {
		items := make([]string, 0, len(c.Items))
		for i, item := range c.Items {
			items = append(items, fmt.Sprintf("%d %s", i+1, item))
		}
		m.input.Reset()
		cmd := m.showNotice(info(c.Name + ": " + strings.Join(items, "  ")))
		return m, cmd
	}

	n, err := strconv.Atoi(args[1])
	glyph, ok := c.Item(n)
	if err != nil || !ok {
		cmd := m.showNotice(failure(fmt.Sprintf("Pick a number from 1 to %d", len(c.Items))))
		return m, cmd
	}
	m.input.SetValue(glyph)
	m.input.CursorEnd()
	cmd := m.typingChanged()
	return m, cmd
}

// sendImage reads path and hands it to the session, which validates the
// type. A read failure becomes a notice.
func (m Model) sendImage(path string) tea.Cmd {
	ctl, logger := m.ctl, m.logger
	return m.calls.push(func() tea.Msg {
		data, err := chat.ReadImageFile(expandHome(path))
		switch {
		case errors.Is(err, chat.ErrImageTooLarge):
			return noticeMsg{notice: failure("Image must be 5 MiB or smaller")}
		case err != nil:
			logger.Debug().Err(err).Str("path", path).Msg("[tui] read image failed")
			return noticeMsg{notice: failure("Could not read " + filepath.Base(path))}
		}
		if err := ctl.SendImage(data, ""); err != nil {
			logger.Debug().Err(err).Msg("[tui] send image failed")
		}
		return nil
	})
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func info(text string) session.Notice {
	return session.Notice{Level: session.NoticeInfo, Text: text}
}

func failure(text string) session.Notice {
	return session.Notice{Level: session.NoticeError, Text: text}
}
