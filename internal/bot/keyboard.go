package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/driphype/shopbot/internal/storage"
)

// inlineBtn is a convenience wrapper for raw-data inline button properties.
type inlineBtn struct {
	Text string
	Data string
}

// inlineRows builds an inline keyboard from rows of inlineBtn, preserving
// the raw callback data so tokens follow the documented grammar.
func inlineRows(rows ...[]inlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

var categoryLabels = map[storage.Category]string{
	storage.CategoryMenswear:    "👨 Menswear",
	storage.CategoryWomenswear:  "👩 Womenswear",
	storage.CategoryKids:        "👶 Kids",
	storage.CategoryAccessories: "🎒 Accessories",
}

var typeLabels = map[storage.ProductType]string{
	storage.TypeShirt:      "👕 Shirt",
	storage.TypePants:      "👖 Pants",
	storage.TypeDress:      "👗 Dress",
	storage.TypeJacket:     "🧥 Jacket",
	storage.TypeShoes:      "👟 Shoes",
	storage.TypeSportswear: "🎽 Sportswear",
	storage.TypeSuit:       "👔 Suit",
	storage.TypeAccessory:  "🎒 Accessory",
}

func cancelRow() []inlineBtn {
	return []inlineBtn{{Text: "❌ Cancel", Data: "cancel_add"}}
}

func categoryKeyboard() *tele.ReplyMarkup {
	rows := make([][]inlineBtn, 0, len(storage.Categories())+1)
	for _, c := range storage.Categories() {
		rows = append(rows, []inlineBtn{{Text: categoryLabels[c], Data: categoryToken(string(c))}})
	}
	rows = append(rows, cancelRow())
	return inlineRows(rows...)
}

func typeKeyboard() *tele.ReplyMarkup {
	rows := make([][]inlineBtn, 0, len(storage.ProductTypes())+1)
	for _, t := range storage.ProductTypes() {
		rows = append(rows, []inlineBtn{{Text: typeLabels[t], Data: typeToken(string(t))}})
	}
	rows = append(rows, cancelRow())
	return inlineRows(rows...)
}

func sizesKeyboard(shoes bool) *tele.ReplyMarkup {
	label := "Use standard sizes (XS-XXL)"
	if shoes {
		label = "Use standard shoe sizes (30-46)"
	}
	return inlineRows(
		[]inlineBtn{{Text: label, Data: "sizes"}},
		cancelRow(),
	)
}

func adminKeyboard() *tele.ReplyMarkup {
	return inlineRows(
		[]inlineBtn{{Text: "➕ Add product", Data: "add_product"}},
		[]inlineBtn{{Text: "📦 List products", Data: "list_products"}},
		[]inlineBtn{{Text: "🗑️ Delete product", Data: "delete_product_menu"}},
		[]inlineBtn{{Text: "📊 Orders", Data: "list_orders"}},
		[]inlineBtn{{Text: "🔙 Back", Data: "back_to_start"}},
	)
}

func backToAdminKeyboard() *tele.ReplyMarkup {
	return inlineRows([]inlineBtn{{Text: "🔙 Back", Data: "admin"}})
}

func (b *Bot) startKeyboard(isAdmin bool) *tele.ReplyMarkup {
	markup := inlineRows(
		nil, // web app row filled below
		[]inlineBtn{{Text: "ℹ️ About the shop", Data: "about"}},
	)
	markup.InlineKeyboard[0] = []tele.InlineButton{{
		Text:   "🛍️ Open shop",
		WebApp: &tele.WebApp{URL: b.cfg.Webhook.BaseURL},
	}}
	if isAdmin {
		markup.InlineKeyboard = append(markup.InlineKeyboard,
			[]tele.InlineButton{{Text: "⚙️ Admin panel", Data: "admin"}},
		)
	}
	return markup
}

func confirmDeleteKeyboard(id int64) *tele.ReplyMarkup {
	return inlineRows([]inlineBtn{
		{Text: "✅ Yes, delete", Data: confirmDeleteToken(id)},
		{Text: "❌ Cancel", Data: "delete_product_menu"},
	})
}
