package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/session"
)

var (
	flagUser     string
	flagPassword string
	flagSticker  string
	flagImage    string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Log in, send one message, sticker or image, and disconnect",
	Args:  cobra.ArbitraryArgs,
	RunE:  runSend,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, sendCmd} {
		c.Flags().StringVarP(&flagUser, "user", "u", "", "username")
		c.Flags().StringVarP(&flagPassword, "password", "p", "", "password (from env CHAT_PASSWORD if unset)")
	}
	sendCmd.Flags().StringVar(&flagSticker, "sticker", "", "send the named sticker instead of text")
	sendCmd.Flags().StringVar(&flagImage, "image", "", "send the image at this path instead of text")
}

// consoleView is the view of the headless commands: incoming messages go to
// out, notices to the log.
type consoleView struct {
	mu     sync.Mutex
	out    io.Writer
	logger zerolog.Logger
	errs   []string
}

var _ session.View = (*consoleView)(nil)

func (v *consoleView) Render(msg chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	text := msg.Text
	if msg.HasImage() {
		if ct, size, ok := chat.DecodeDataURL(msg.Image); ok {
			text = fmt.Sprintf("[%s, %d bytes] %s", ct, size, text)
		}
	}
	fmt.Fprintf(v.out, "%s: %s\n", msg.From, strings.TrimSpace(text))
}

func (v *consoleView) SetRoster([]string)   {}
func (v *consoleView) SetTypingText(string) {}
func (v *consoleView) ShowChat()            {}
func (v *consoleView) ShowLogin()           {}
func (v *consoleView) ClearInput()          {}

func (v *consoleView) ShowNotice(n session.Notice) {
	if n.Level == session.NoticeError {
		v.mu.Lock()
		v.errs = append(v.errs, n.Text)
		v.mu.Unlock()
		v.logger.Warn().Msg(n.Text)
		return
	}
	v.logger.Info().Msg(n.Text)
}

// lastError is the most recent error notice, which is friendlier than the
// wrapped error returned alongside it.
func (v *consoleView) lastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.errs) == 0 {
		return ""
	}
	return v.errs[len(v.errs)-1]
}

// headless holds what every non-interactive command needs.
type headless struct {
	sess  *session.Session
	view  *consoleView
	store tokenStore
}

func openHeadless(cmd *cobra.Command) (*headless, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, _, err := setupLogger(cfg.Log, false)
	if err != nil {
		return nil, err
	}
	store, err := openTokenStore(cfg.Token)
	if err != nil {
		return nil, err
	}
	view := &consoleView{out: cmd.OutOrStdout(), logger: logger}
	return &headless{
		sess:  newSession(cfg, view, store, logger),
		view:  view,
		store: store,
	}, nil
}

func (h *headless) Close() error {
	_ = h.sess.Close()
	return h.store.Close()
}

// fail prefers the notice the session showed over the raw error.
func (h *headless) fail(err error) error {
	if msg := h.view.lastError(); msg != "" {
		return errors.New(msg)
	}
	return err
}

func credentials() (string, string) {
	password := flagPassword
	if password == "" {
		password = os.Getenv("CHAT_PASSWORD")
	}
	return flagUser, password
}

func runRegister(cmd *cobra.Command, _ []string) error {
	h, err := openHeadless(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	user, password := credentials()
	if err := h.sess.Register(cmd.Context(), user, password); err != nil {
		return h.fail(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", strings.TrimSpace(user))
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if flagSticker == "" && flagImage == "" && strings.TrimSpace(text) == "" {
		return errors.New("nothing to send: give text, --sticker or --image")
	}

	// The image is read before logging in so a bad path costs no round trip.
	var image []byte
	if flagImage != "" {
		data, err := chat.ReadImageFile(flagImage)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		image = data
	}

	h, err := openHeadless(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	ctx := cmd.Context()
	user, password := credentials()
	if err := h.sess.Login(ctx, user, password); err != nil {
		return h.fail(err)
	}

	switch {
	case flagImage != "":
		if err := h.sess.SendImage(image, ""); err != nil {
			return h.fail(err)
		}
	case flagSticker != "":
		glyph, err := stickerGlyph(flagSticker)
		if err != nil {
			return err
		}
		if err := h.sess.SendChatMessage(glyph); err != nil {
			return h.fail(err)
		}
	default:
		if err := h.sess.SendChatMessage(text); err != nil {
			return h.fail(err)
		}
	}
	return nil
}

func stickerGlyph(name string) (string, error) {
	picker, err := chat.LoadStickers()
	if err != nil {
		return "", err
	}
	st, ok := picker.Sticker(name)
	if !ok {
		return "", fmt.Errorf("unknown sticker %q, known: %s", name, strings.Join(picker.Names(), ", "))
	}
	return st.Glyph, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	h, err := openHeadless(cmd)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.sess.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "logged out")
	return nil
}
