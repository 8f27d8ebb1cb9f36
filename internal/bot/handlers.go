package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/session"
	"github.com/driphype/shopbot/internal/storage"
	"github.com/driphype/shopbot/internal/wizard"
)

const (
	deleteMenuLimit  = 20
	listLimit        = 15
	recentOrderLimit = 10
)

// view is a transport-agnostic handler result. The telebot layer renders it;
// tests inspect it directly.
type view struct {
	text   string
	markup *tele.ReplyMarkup
	// alert is a callback acknowledgment shown as a popup.
	alert string
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.cfg.Telegram.AdminID
}

var accessDeniedView = view{alert: "❌ Access denied"}

// handleStart upserts the user and builds the storefront greeting.
func (b *Bot) handleStart(ctx context.Context, sender *tele.User) view {
	admin := b.isAdmin(sender.ID)
	if err := b.store.UpsertUser(ctx, storage.User{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		IsAdmin:   admin,
	}); err != nil {
		logger.Error(ctx, "tg", "user.upsert",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n\n🛍️ Welcome to our clothing shop!\n\nTap the button below to browse the catalog:",
		sender.FirstName,
	)
	return view{text: text, markup: b.startKeyboard(admin)}
}

// handleAction dispatches one decoded callback action. The admin check runs
// on every invocation; it is never cached across a session.
func (b *Bot) handleAction(ctx context.Context, sender *tele.User, a Action) view {
	switch a.Kind {
	case ActionAdminMenu:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return view{text: "⚙️ Admin panel\n\nChoose an action:", markup: adminKeyboard()}

	case ActionAddProduct:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.renderWizard(b.engine.Start(sender.ID))

	case ActionListProducts:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.listProductsView(ctx)

	case ActionDeleteMenu:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.deleteMenuView(ctx)

	case ActionListOrders:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.listOrdersView(ctx)

	case ActionDelete:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		if _, err := b.store.GetProduct(ctx, a.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return view{alert: "Product not found"}
			}
			return b.storageFailure(ctx, err)
		}
		return view{
			text:   fmt.Sprintf("⚠️ Are you sure you want to delete product #%d?", a.ID),
			markup: confirmDeleteKeyboard(a.ID),
		}

	case ActionConfirmDelete:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		if err := b.store.DeleteProduct(ctx, a.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return view{alert: "Product not found"}
			}
			return b.storageFailure(ctx, err)
		}
		v := b.deleteMenuView(ctx)
		v.alert = "✅ Product deleted"
		return v

	case ActionCategory:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.wizardStep(ctx, func() (wizard.Reply, error) {
			return b.engine.Category(ctx, sender.ID, a.Payload)
		})

	case ActionProductType:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.wizardStep(ctx, func() (wizard.Reply, error) {
			return b.engine.ProductType(ctx, sender.ID, a.Payload)
		})

	case ActionStandardSizes:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.wizardStep(ctx, func() (wizard.Reply, error) {
			return b.engine.StandardSizes(ctx, sender.ID)
		})

	case ActionCancelAdd:
		if !b.isAdmin(sender.ID) {
			return accessDeniedView
		}
		return b.renderWizard(b.engine.Cancel(sender.ID))

	case ActionBackToStart:
		return b.handleStart(ctx, sender)

	case ActionAbout:
		return view{
			text: "ℹ️ About our shop\n\n🛍️ Quality clothing at fair prices!\n\n" +
				"📱 Order right here in Telegram\n🚚 Fast nationwide delivery\n💳 Convenient payment",
			markup: inlineRows([]inlineBtn{{Text: "🔙 Back", Data: "back_to_start"}}),
		}

	default:
		return view{alert: "Unknown action"}
	}
}

// handleText feeds free text into the wizard when one is in progress.
// Reports false when the text was not consumed.
func (b *Bot) handleText(ctx context.Context, sender *tele.User, text string) (view, bool) {
	if !b.engine.Active(sender.ID) {
		return view{}, false
	}
	if !b.isAdmin(sender.ID) {
		return accessDeniedView, true
	}
	v := b.wizardStep(ctx, func() (wizard.Reply, error) {
		return b.engine.Text(ctx, sender.ID, text)
	})
	return v, true
}

func (b *Bot) wizardStep(ctx context.Context, step func() (wizard.Reply, error)) view {
	reply, err := step()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return view{alert: "No product wizard in progress"}
		}
		return b.storageFailure(ctx, err)
	}
	return b.renderWizard(reply)
}

// renderWizard attaches the keyboard matching the wizard's next step.
func (b *Bot) renderWizard(reply wizard.Reply) view {
	switch {
	case reply.Cancelled:
		return view{text: reply.Text}
	case reply.Done:
		d := reply.Draft
		return view{text: fmt.Sprintf(
			"✅ Product #%d added!\n\n📦 %s\n🏷️ %s\n💰 %s\n📁 %s\n📏 Sizes: %s",
			reply.ProductID, d.Name, d.ProductType, d.Price.String(), d.Category,
			strings.Join(d.Sizes, ","),
		)}
	}

	v := view{text: reply.Text}
	switch reply.State {
	case wizard.StateAwaitingCategory:
		v.markup = categoryKeyboard()
	case wizard.StateAwaitingProductType:
		v.markup = typeKeyboard()
	case wizard.StateAwaitingSizes:
		v.markup = sizesKeyboard(reply.Draft.ProductType == storage.TypeShoes)
	default:
		v.markup = inlineRows(cancelRow())
	}
	return v
}

func (b *Bot) listProductsView(ctx context.Context) view {
	products, err := b.store.ListProducts(ctx)
	if err != nil {
		return b.storageFailure(ctx, err)
	}
	if len(products) == 0 {
		return view{text: "📦 No products yet", markup: backToAdminKeyboard()}
	}
	if len(products) > listLimit {
		products = products[:listLimit]
	}

	var sb strings.Builder
	sb.WriteString("📦 Products:\n\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "🆔 %d | %s\n💰 %s | %s | %s\n\n",
			p.ID, p.Name, p.Price.String(), p.ProductType, p.Category)
	}
	return view{text: sb.String(), markup: backToAdminKeyboard()}
}

func (b *Bot) deleteMenuView(ctx context.Context) view {
	products, err := b.store.ListProducts(ctx)
	if err != nil {
		return b.storageFailure(ctx, err)
	}
	if len(products) == 0 {
		return view{text: "📦 No products yet", markup: backToAdminKeyboard()}
	}
	if len(products) > deleteMenuLimit {
		products = products[:deleteMenuLimit]
	}

	rows := make([][]inlineBtn, 0, len(products)+1)
	for _, p := range products {
		rows = append(rows, []inlineBtn{{
			Text: fmt.Sprintf("🗑️ %s (%s)", p.Name, p.Price.String()),
			Data: deleteToken(p.ID),
		}})
	}
	rows = append(rows, []inlineBtn{{Text: "🔙 Back", Data: "admin"}})
	return view{
		text:   "🗑️ Delete product\n\nChoose a product to delete:",
		markup: inlineRows(rows...),
	}
}

func (b *Bot) listOrdersView(ctx context.Context) view {
	orders, err := b.store.ListRecentOrders(ctx, recentOrderLimit)
	if err != nil {
		return b.storageFailure(ctx, err)
	}
	if len(orders) == 0 {
		return view{text: "📊 No orders yet", markup: backToAdminKeyboard()}
	}

	var sb strings.Builder
	sb.WriteString("📊 Recent orders:\n\n")
	for _, o := range orders {
		username := o.Username
		if username == "" {
			username = "no username"
		}
		fmt.Fprintf(&sb, "🆔 #%d | @%s\n💰 %s | %s\n\n",
			o.ID, username, o.TotalPrice.String(), o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return view{text: sb.String(), markup: backToAdminKeyboard()}
}

// orderPayload is the in-app purchase envelope sent by the storefront web app.
type orderPayload struct {
	Type     string            `json:"type"`
	Products []json.RawMessage `json:"products"`
	Total    decimal.Decimal   `json:"total"`
}

// handleOrder persists a purchase payload and builds the buyer confirmation
// plus the admin notification.
func (b *Bot) handleOrder(ctx context.Context, sender *tele.User, raw string) (confirmation, adminNote view, err error) {
	var payload orderPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return view{}, view{}, fmt.Errorf("decode order payload: %w", err)
	}
	if payload.Type != "order" {
		return view{}, view{}, nil
	}

	items, err := json.Marshal(payload.Products)
	if err != nil {
		return view{}, view{}, fmt.Errorf("encode order items: %w", err)
	}

	orderID, err := b.store.InsertOrder(ctx, storage.Order{
		UserID:     sender.ID,
		Username:   sender.Username,
		Items:      string(items),
		TotalPrice: payload.Total,
	})
	if err != nil {
		return b.storageFailure(ctx, err), view{}, nil
	}

	username := sender.Username
	if username == "" {
		username = "no username"
	}
	confirmation = view{text: fmt.Sprintf(
		"✅ Order #%d accepted!\n\n💰 Total: %s\n📦 Items: %d\n\nWe will contact you shortly!",
		orderID, payload.Total.String(), len(payload.Products),
	)}
	adminNote = view{text: fmt.Sprintf(
		"🔔 New order #%d!\n\n👤 @%s\n💰 Total: %s\n📦 Items: %d",
		orderID, username, payload.Total.String(), len(payload.Products),
	)}
	return confirmation, adminNote, nil
}

func (b *Bot) storageFailure(ctx context.Context, err error) view {
	logger.Error(ctx, "tg", "storage.failure", slog.String("err", err.Error()))
	return view{text: "⚠️ Something went wrong. Please try again."}
}
