package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates the closed set of callback actions. Callback data is
// decoded once at the boundary; handlers dispatch over the variants and can
// never see a raw token.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionAdminMenu
	ActionAddProduct
	ActionListProducts
	ActionDeleteMenu
	ActionListOrders
	ActionCancelAdd
	ActionBackToStart
	ActionAbout
	ActionCategory
	ActionProductType
	ActionStandardSizes
	ActionDelete
	ActionConfirmDelete
)

// Action is one decoded callback token.
type Action struct {
	Kind ActionKind
	// Payload carries the selection for category/type actions.
	Payload string
	// ID carries the product identifier for delete actions.
	ID int64
}

// Callback token grammar: "<prefix>" or "<prefix>_<payload>". Bare tokens
// must be matched before prefixed ones: "delete_product_menu" would
// otherwise parse as a delete with a garbage id.
var bareTokens = map[string]ActionKind{
	"admin":               ActionAdminMenu,
	"add_product":         ActionAddProduct,
	"list_products":       ActionListProducts,
	"delete_product_menu": ActionDeleteMenu,
	"list_orders":         ActionListOrders,
	"cancel_add":          ActionCancelAdd,
	"back_to_start":       ActionBackToStart,
	"about":               ActionAbout,
	"sizes":               ActionStandardSizes,
}

// DecodeAction parses raw callback data into an Action. Unknown tokens
// decode to ActionUnknown and are acknowledged, never crashed on.
func DecodeAction(data string) Action {
	// Telebot-style callbacks may carry a \f prefix.
	token := strings.TrimSpace(strings.TrimPrefix(data, "\f"))

	if kind, ok := bareTokens[token]; ok {
		return Action{Kind: kind}
	}

	switch {
	case strings.HasPrefix(token, "cat_"):
		return Action{Kind: ActionCategory, Payload: strings.TrimPrefix(token, "cat_")}
	case strings.HasPrefix(token, "type_"):
		return Action{Kind: ActionProductType, Payload: strings.TrimPrefix(token, "type_")}
	case strings.HasPrefix(token, "confirm_delete_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(token, "confirm_delete_"), 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionConfirmDelete, ID: id}
	case strings.HasPrefix(token, "delete_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(token, "delete_"), 10, 64)
		if err != nil {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionDelete, ID: id}
	}

	return Action{Kind: ActionUnknown}
}

func categoryToken(c string) string     { return "cat_" + c }
func typeToken(t string) string         { return "type_" + t }
func deleteToken(id int64) string       { return fmt.Sprintf("delete_%d", id) }
func confirmDeleteToken(id int64) string { return fmt.Sprintf("confirm_delete_%d", id) }
