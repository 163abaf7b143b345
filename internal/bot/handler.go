package bot

import (
	"context"
	"fmt"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"profiledir/internal/config"
	"profiledir/internal/domain"
	"profiledir/internal/handshake"
	"profiledir/internal/scraper"
	"profiledir/internal/session"
)

// Profiles is the view of the directory the bot needs.
type Profiles interface {
	Get(ctx context.Context, id string) (domain.Profile, error)
	Refresh(ctx context.Context, id string) (domain.Profile, error)
	Invalidate(ctx context.Context, id string) error
}

// chat is the edit state of one Telegram chat. Each chat edits at most one profile.
type chat struct {
	session   *session.Session
	handshake *handshake.Handshake
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	cfg       config.Config
	amount    decimal.Decimal
	profiles  Profiles
	verifier  handshake.Verifier
	previewer scraper.Previewer
	log       logrus.FieldLogger

	mu    sync.Mutex
	chats map[int64]*chat
}

// NewHandler creates a new bot handler instance.
func NewHandler(cfg config.Config, profiles Profiles, verifier handshake.Verifier, previewer scraper.Previewer, logger logrus.FieldLogger) (*Handler, error) {
	h, err := newHandler(cfg, profiles, verifier, previewer, logger)
	if err != nil {
		return nil, err
	}

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.startHandler)
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(cfg config.Config, profiles Profiles, verifier handshake.Verifier, previewer scraper.Previewer, logger logrus.FieldLogger) (*Handler, error) {
	amount, err := cfg.Amount()
	if err != nil {
		return nil, err
	}
	if previewer == nil {
		previewer = scraper.Noop{}
	}
	return &Handler{
		cfg:       cfg,
		amount:    amount,
		profiles:  profiles,
		verifier:  verifier,
		previewer: previewer,
		log:       logger.WithField("component", "bot_handler"),
		chats:     make(map[int64]*chat),
	}, nil
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.discardAll()
	h.log.Info("Telegram bot polling stopped.")
}

// startHandler handles the /start command.
func (h *Handler) startHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.send(ctx, b, update.Message.Chat.ID, helpText)
}

func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	h.messageLog(update.Message).Debug("Received message")

	h.send(ctx, b, chatID, h.Dispatch(ctx, chatID, update.Message.Text))
}

func (h *Handler) messageLog(m *models.Message) logrus.FieldLogger {
	log := h.log.WithField("chat_id", m.Chat.ID)
	// Channel posts carry no sender.
	if m.From != nil {
		log = log.WithField("user_id", m.From.ID)
	}
	return log
}

func (h *Handler) send(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

func (h *Handler) chat(chatID int64) (*chat, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.chats[chatID]
	return c, ok
}

// open replaces the chat's edit state with a fresh session for p.
func (h *Handler) open(chatID int64, p domain.Profile) *chat {
	c := &chat{session: session.New(p)}
	c.handshake = handshake.New(p.ID, h.verifier, h.log.WithField("chat_id", chatID),
		handshake.WithOnSuccess(func(ctx context.Context, entityID string) {
			if err := h.profiles.Invalidate(ctx, entityID); err != nil {
				h.log.WithError(err).WithField("profile_id", entityID).Warn("Failed to invalidate profile")
			}
			h.discard(chatID, c)
		}))

	h.mu.Lock()
	old := h.chats[chatID]
	h.chats[chatID] = c
	h.mu.Unlock()

	if old != nil {
		old.handshake.Dispose()
	}
	return c
}

// discard drops the chat's state if it is still c. A nil c drops whatever is there.
func (h *Handler) discard(chatID int64, c *chat) {
	h.mu.Lock()
	cur, ok := h.chats[chatID]
	if !ok || (c != nil && cur != c) {
		h.mu.Unlock()
		return
	}
	delete(h.chats, chatID)
	h.mu.Unlock()

	cur.handshake.Dispose()
}

func (h *Handler) discardAll() {
	h.mu.Lock()
	chats := h.chats
	h.chats = make(map[int64]*chat)
	h.mu.Unlock()

	for _, c := range chats {
		c.handshake.Dispose()
	}
}
