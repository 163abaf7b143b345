package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"profiledir/internal/budget"
	"profiledir/internal/domain"
	"profiledir/internal/fielddiff"
	"profiledir/internal/handshake"
	"profiledir/internal/linktoken"
	"profiledir/internal/memo"
	"profiledir/internal/session"
	"profiledir/internal/storage"
)

const helpText = `Edit a directory profile through a payment memo.

/edit <profile id>     start editing a profile
/set <field> <value>   change name, display_name, bio, image or address
/clear <field>         delete a field
/restore <field>       undo changes to a field
/addlink <url>         add a link
/addverify <url>       add a link and request its verification
/link <n> <url>        change link n
/rmlink <n>            remove link n
/verify <n>            request verification of link n
/show                  show the draft, memo and payment request
/decode <memo>         explain a memo or payment link
/otp <code>            confirm the edit with the code you received
/reset                 undo all changes
/reload                fetch the profile again and start over
/cancel                stop editing`

var errNoSession = errors.New("no profile is being edited, use /edit <profile id>")

// Dispatch runs one command for chatID and returns the reply.
func (h *Handler) Dispatch(ctx context.Context, chatID int64, text string) string {
	cmd, args := splitCommand(text)
	log := h.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"command": cmd,
	})

	var (
		reply string
		err   error
	)
	switch cmd {
	case "/start", "/help":
		reply = helpText
	case "/edit":
		reply, err = h.cmdEdit(ctx, chatID, args)
	case "/cancel":
		h.discard(chatID, nil)
		reply = "Editing cancelled."
	case "/otp":
		reply, err = h.cmdOTP(ctx, chatID, args)
	case "/reload":
		reply, err = h.cmdReload(ctx, chatID)
	case "/show":
		c, ok := h.chat(chatID)
		if !ok {
			err = errNoSession
			break
		}
		reply = h.render(c)
	case "/decode":
		reply, err = cmdDecode(args)
	default:
		reply, err = h.withSession(chatID, func(s *session.Session) (string, error) {
			return h.edit(ctx, s, cmd, args)
		})
	}

	if err != nil {
		log.WithError(err).Debug("Command rejected")
		return describe(err)
	}
	return reply
}

func (h *Handler) withSession(chatID int64, fn func(s *session.Session) (string, error)) (string, error) {
	c, ok := h.chat(chatID)
	if !ok {
		return "", errNoSession
	}
	return fn(c.session)
}

func (h *Handler) cmdEdit(ctx context.Context, chatID int64, args string) (string, error) {
	id := strings.TrimSpace(args)
	if id == "" {
		return "", errors.New("usage: /edit <profile id>")
	}
	p, err := h.profiles.Get(ctx, id)
	if err != nil {
		return "", err
	}
	c := h.open(chatID, p)
	return h.render(c), nil
}

// cmdReload drops the draft and restarts from a fresh copy of the profile.
func (h *Handler) cmdReload(ctx context.Context, chatID int64) (string, error) {
	c, ok := h.chat(chatID)
	if !ok {
		return "", errNoSession
	}
	p, err := h.profiles.Refresh(ctx, c.session.ProfileID())
	if err != nil {
		return "", err
	}
	c = h.open(chatID, p)
	return h.render(c), nil
}

func (h *Handler) cmdOTP(ctx context.Context, chatID int64, args string) (string, error) {
	c, ok := h.chat(chatID)
	if !ok {
		return "", errNoSession
	}
	out, err := c.handshake.Submit(ctx, args)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (h *Handler) edit(ctx context.Context, s *session.Session, cmd, args string) (string, error) {
	switch cmd {
	case "/set":
		name, value := splitArg(args)
		f, err := parseField(name)
		if err != nil {
			return "", err
		}
		if err := s.SetField(f, value); err != nil {
			return "", err
		}
		if f == domain.FieldBio {
			return fmt.Sprintf("Bio updated, %d bytes left.", s.BioRemaining()), nil
		}
		return fmt.Sprintf("%s updated.", f), nil

	case "/clear":
		f, err := parseField(args)
		if err != nil {
			return "", err
		}
		if err := s.ClearField(f); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s will be deleted.", f), nil

	case "/restore":
		f, err := parseField(args)
		if err != nil {
			return "", err
		}
		s.RestoreField(f)
		return fmt.Sprintf("%s restored.", f), nil

	case "/addlink", "/addverify":
		url := strings.TrimSpace(args)
		if _, err := s.AddLink(url, cmd == "/addverify"); err != nil {
			return "", err
		}
		return "Link added." + h.preview(ctx, url), nil

	case "/link":
		n, url := splitArg(args)
		key, err := rowKey(s, n)
		if err != nil {
			return "", err
		}
		if err := s.UpdateLink(key, url); err != nil {
			return "", err
		}
		return "Link updated.", nil

	case "/rmlink":
		key, err := rowKey(s, args)
		if err != nil {
			return "", err
		}
		if err := s.RemoveLink(key); err != nil {
			return "", err
		}
		return "Link removed.", nil

	case "/verify":
		key, err := rowKey(s, args)
		if err != nil {
			return "", err
		}
		if err := s.RequestVerification(key); err != nil {
			return "", err
		}
		return "Verification requested.", nil

	case "/reset":
		s.Reset()
		return "All changes undone.", nil
	}
	return "", fmt.Errorf("unknown command %q, see /help", cmd)
}

func (h *Handler) preview(ctx context.Context, url string) string {
	if !h.cfg.LinkPreviews || !linktoken.ValidURL(url) {
		return ""
	}
	p, err := h.previewer.Preview(ctx, url)
	if err != nil {
		h.log.WithError(err).WithField("url", url).Debug("Link preview failed")
		return ""
	}
	var out string
	for _, line := range []string{p.Title, p.Description} {
		if line != "" {
			out += "\n" + line
		}
	}
	return out
}

// render shows the draft together with the memo and payment request it produces.
func (h *Handler) render(c *chat) string {
	s := c.session
	p := s.Original()
	diff := s.Diff()

	var b strings.Builder
	fmt.Fprintf(&b, "Profile %s (%s)\n", s.ProfileID(), p.Name)
	if !p.AddressVerified {
		b.WriteString("Address not verified: it cannot be changed.\n")
	}
	for _, c := range diff.Changes {
		fmt.Fprintf(&b, "  %s: %s\n", c.Field, c.Value)
	}
	for _, f := range diff.Deleted {
		fmt.Fprintf(&b, "  %s: (deleted)\n", f)
	}

	b.WriteString("Links:\n")
	for i, r := range s.Rows() {
		mark := ""
		if r.ID != nil {
			if l, ok := p.LinkByID(*r.ID); ok && l.IsVerified {
				mark = " [verified]"
			}
		}
		fmt.Fprintf(&b, "  %d. %s%s\n", i+1, r.URL, mark)
	}

	if out, ok := c.handshake.Outcome(); ok {
		fmt.Fprintf(&b, "Last code: %s\n", out.Message)
	}

	if !s.Dirty() {
		b.WriteString("No pending changes.")
		return b.String()
	}

	if tokens := s.Tokens(); len(tokens) > 0 {
		fmt.Fprintf(&b, "Link changes: %s\n", strings.Join(linktoken.Strings(tokens), " "))
	}

	pay, err := s.Payment(h.cfg.PaymentScheme, h.cfg.PaymentAddress, h.amount)
	if err != nil {
		b.WriteString(describe(err))
		return b.String()
	}
	fmt.Fprintf(&b, "Memo: %s\n", pay.Memo)
	fmt.Fprintf(&b, "Budget left: %d bytes\n", budget.Remaining(pay.Memo))
	fmt.Fprintf(&b, "Pay with: %s\n", pay.URI)
	b.WriteString("Then send the code you receive with /otp <code>.")
	return b.String()
}

// cmdDecode explains a memo, given raw or as the base64url memo parameter of a
// payment URI, the way the verifier will read it.
func cmdDecode(args string) (string, error) {
	raw := strings.TrimSpace(args)
	if raw == "" {
		return "", errors.New("usage: /decode <memo>")
	}
	if _, param, ok := strings.Cut(raw, "memo="); ok {
		raw, _, _ = strings.Cut(param, "&")
	}
	if !strings.HasPrefix(raw, "{") {
		text, err := memo.DecodeParam(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", memo.ErrMalformed, err)
		}
		raw = text
	}

	p, err := memo.Decode(raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Profile %s\n", p.EntityID)
	if p.RequestID != "" {
		fmt.Fprintf(&b, "Request %s\n", p.RequestID)
	}
	for _, c := range p.Changes {
		fmt.Fprintf(&b, "  set %s: %s\n", c.Field, c.Value)
	}
	for _, f := range p.Deleted {
		fmt.Fprintf(&b, "  delete %s\n", f)
	}
	for _, t := range p.Links {
		lt, _ := linktoken.Parse(t)
		switch lt.Kind {
		case linktoken.KindCreate, linktoken.KindCreateVerify:
			fmt.Fprintf(&b, "  link %s: %s\n", lt.Kind, lt.URL)
		case linktoken.KindEdit:
			fmt.Fprintf(&b, "  link %s %d: %s\n", lt.Kind, lt.ID, lt.URL)
		case linktoken.KindDelete, linktoken.KindVerify:
			fmt.Fprintf(&b, "  link %s %d\n", lt.Kind, lt.ID)
		default:
			fmt.Fprintf(&b, "  link %s: %s\n", lt.Kind, t)
		}
	}
	if p.Empty() {
		b.WriteString("No pending changes.")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func describe(err error) string {
	var over *budget.OverflowError
	switch {
	case errors.As(err, &over):
		return fmt.Sprintf("Too long: %d bytes over the limit.", over.Over)
	case errors.Is(err, fielddiff.ErrAddressImmutable):
		return "The address is not verified and cannot be changed. Register a new profile instead."
	case errors.Is(err, session.ErrInvalidURL):
		return "That link is not a valid http(s) url."
	case errors.Is(err, session.ErrVerifiedReadOnly):
		return "Verified links cannot be edited, only removed."
	case errors.Is(err, session.ErrAlreadyVerified):
		return "That link is already verified."
	case errors.Is(err, session.ErrNotNew):
		return "That link is already on the profile."
	case errors.Is(err, session.ErrNotDeletable):
		return "That field cannot be deleted."
	case errors.Is(err, handshake.ErrInvalidOTP):
		return "The code must contain digits only."
	case errors.Is(err, handshake.ErrInFlight):
		return "A code is already being checked, please wait."
	case errors.Is(err, handshake.ErrDisposed):
		return "This edit was closed."
	case errors.Is(err, storage.ErrNotFound):
		return "Profile not found."
	case errors.Is(err, memo.ErrMalformed):
		return "That memo could not be read."
	}
	return err.Error()
}

func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	cmd, args, _ = strings.Cut(text, " ")
	// Commands addressed to the bot in groups carry a @botname suffix.
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func splitArg(args string) (first, rest string) {
	first, rest, _ = strings.Cut(strings.TrimSpace(args), " ")
	return first, strings.TrimSpace(rest)
}

func parseField(name string) (domain.Field, error) {
	f, ok := domain.ParseField(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return 0, fmt.Errorf("unknown field %q", name)
	}
	return f, nil
}

func rowKey(s *session.Session, n string) (string, error) {
	i, err := strconv.Atoi(strings.TrimSpace(n))
	rows := s.Rows()
	if err != nil || i < 1 || i > len(rows) {
		return "", fmt.Errorf("no link number %q, see /show", n)
	}
	return rows[i-1].RowKey, nil
}
