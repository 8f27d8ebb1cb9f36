// Package wizard drives the multi-step add-product conversation. The engine
// is transport-free: it consumes raw text and selection tokens and returns
// Reply values describing the next prompt; rendering keyboards and sending
// messages is the bot layer's job.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/driphype/shopbot/internal/logger"
	"github.com/driphype/shopbot/internal/session"
	"github.com/driphype/shopbot/internal/storage"
)

// Wizard states, entered strictly in order. Each state is left only via a
// valid input for that state.
const (
	StateAwaitingName        session.State = "awaiting_name"
	StateAwaitingDescription session.State = "awaiting_description"
	StateAwaitingPrice       session.State = "awaiting_price"
	StateAwaitingImageURL    session.State = "awaiting_image_url"
	StateAwaitingCategory    session.State = "awaiting_category"
	StateAwaitingProductType session.State = "awaiting_product_type"
	StateAwaitingSizes       session.State = "awaiting_sizes"
)

// StandardApparelSizes fills the sizes field via the shortcut for apparel.
var StandardApparelSizes = storage.SizeList{"XS", "S", "M", "L", "XL", "XXL"}

// StandardShoeSizes returns the fixed footwear size range 30..46.
func StandardShoeSizes() storage.SizeList {
	sizes := make(storage.SizeList, 0, 17)
	for i := 30; i <= 46; i++ {
		sizes = append(sizes, fmt.Sprintf("%d", i))
	}
	return sizes
}

// Reply describes the engine's reaction to one input.
type Reply struct {
	// State the session is in after the input was applied. Empty when the
	// session ended (Done or Cancelled).
	State session.State
	// Text is the prompt to show, including any error annotation.
	Text string
	// Invalid marks a rejected input: the state did not advance and Text
	// re-issues the prompt.
	Invalid bool
	// Done marks wizard completion; ProductID and Draft carry the result.
	Done      bool
	ProductID int64
	Draft     session.ProductDraft
	// Cancelled marks an explicit cancellation.
	Cancelled bool
}

// Engine applies wizard inputs against the session store and persists the
// finished product through the storage layer.
type Engine struct {
	sessions *session.Manager
	store    storage.Store
	log      *slog.Logger
}

// New constructs a conversation engine.
func New(sessions *session.Manager, store storage.Store) *Engine {
	return &Engine{
		sessions: sessions,
		store:    store,
		log:      logger.Component("wizard"),
	}
}

// Active reports whether the user is mid-wizard.
func (e *Engine) Active(userID int64) bool {
	return e.sessions.Active(userID)
}

// Start begins a fresh wizard for the user, overwriting any session in
// progress.
func (e *Engine) Start(userID int64) Reply {
	e.sessions.Begin(userID, StateAwaitingName)
	e.log.Debug("wizard started", slog.Int64("user_id", userID))
	return Reply{State: StateAwaitingName, Text: "Enter the product name:"}
}

// Cancel ends the wizard without persisting anything. Safe to call from any
// state, including when no session exists.
func (e *Engine) Cancel(userID int64) Reply {
	e.sessions.Delete(userID)
	e.log.Debug("wizard cancelled", slog.Int64("user_id", userID))
	return Reply{Cancelled: true, Text: "Product creation cancelled."}
}

// Text applies a free-text input to the user's current state.
func (e *Engine) Text(ctx context.Context, userID int64, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	return e.apply(ctx, userID, func(s *session.Session) (Reply, error) {
		switch s.State {
		case StateAwaitingName:
			if text == "" {
				return reprompt(s.State, "Name cannot be empty. Enter the product name:"), nil
			}
			s.Draft.Name = text
			s.State = StateAwaitingDescription
			return Reply{State: s.State, Text: "Enter the product description:"}, nil

		case StateAwaitingDescription:
			if text == "" {
				return reprompt(s.State, "Description cannot be empty. Enter the product description:"), nil
			}
			s.Draft.Description = text
			s.State = StateAwaitingPrice
			return Reply{State: s.State, Text: "Enter the product price (a number):"}, nil

		case StateAwaitingPrice:
			price, err := decimal.NewFromString(text)
			if err != nil || !price.IsPositive() {
				return reprompt(s.State, "Invalid price format. Enter a positive number:"), nil
			}
			s.Draft.Price = price
			s.State = StateAwaitingImageURL
			return Reply{State: s.State, Text: "Enter the product image URL:"}, nil

		case StateAwaitingImageURL:
			if text == "" {
				return reprompt(s.State, "Image URL cannot be empty. Enter the product image URL:"), nil
			}
			s.Draft.ImageURL = text
			s.State = StateAwaitingCategory
			return Reply{State: s.State, Text: "Choose a category:"}, nil

		case StateAwaitingCategory, StateAwaitingProductType:
			// Constrained selections never accept free text.
			return reprompt(s.State, "Please use the buttons to choose."), nil

		case StateAwaitingSizes:
			sizes := splitSizes(text)
			if len(sizes) == 0 {
				return reprompt(s.State, "Sizes cannot be empty. Enter sizes separated by commas:"), nil
			}
			return e.finalize(ctx, s, sizes)

		default:
			return Reply{}, session.ErrNoSession
		}
	})
}

// Category applies a category selection token.
func (e *Engine) Category(ctx context.Context, userID int64, token string) (Reply, error) {
	return e.apply(ctx, userID, func(s *session.Session) (Reply, error) {
		if s.State != StateAwaitingCategory {
			return reprompt(s.State, "Unexpected selection. "+promptFor(s.State)), nil
		}
		cat, ok := storage.ParseCategory(token)
		if !ok {
			return reprompt(s.State, "Unknown category. Choose a category:"), nil
		}
		s.Draft.Category = cat
		s.State = StateAwaitingProductType
		return Reply{State: s.State, Text: "Choose a product type:"}, nil
	})
}

// ProductType applies a product type selection token.
func (e *Engine) ProductType(ctx context.Context, userID int64, token string) (Reply, error) {
	return e.apply(ctx, userID, func(s *session.Session) (Reply, error) {
		if s.State != StateAwaitingProductType {
			return reprompt(s.State, "Unexpected selection. "+promptFor(s.State)), nil
		}
		pt, ok := storage.ParseProductType(token)
		if !ok {
			return reprompt(s.State, "Unknown product type. Choose a product type:"), nil
		}
		s.Draft.ProductType = pt
		s.State = StateAwaitingSizes
		if pt == storage.TypeShoes {
			return Reply{State: s.State, Text: "Enter sizes separated by commas, or use the standard shoe sizes (30-46):"}, nil
		}
		return Reply{State: s.State, Text: "Enter sizes separated by commas, or use the standard sizes (XS,S,M,L,XL,XXL):"}, nil
	})
}

// StandardSizes applies the use-standard-sizes shortcut. It is a transition
// alias for the sizes state, not a state of its own: the fixed list depends
// on the drafted product type.
func (e *Engine) StandardSizes(ctx context.Context, userID int64) (Reply, error) {
	return e.apply(ctx, userID, func(s *session.Session) (Reply, error) {
		if s.State != StateAwaitingSizes {
			return reprompt(s.State, "Unexpected selection. "+promptFor(s.State)), nil
		}
		sizes := StandardApparelSizes
		if s.Draft.ProductType == storage.TypeShoes {
			sizes = StandardShoeSizes()
		}
		return e.finalize(ctx, s, sizes)
	})
}

// apply runs fn as one atomic read-modify-write on the user's session. A
// finished wizard is removed inside the same critical section, so a racing
// input for the same user can never re-run finalize.
func (e *Engine) apply(ctx context.Context, userID int64, fn func(*session.Session) (Reply, error)) (Reply, error) {
	var reply Reply
	err := e.sessions.Finish(userID, func(s *session.Session) (bool, error) {
		var innerErr error
		reply, innerErr = fn(s)
		if innerErr == nil && !reply.Done {
			reply.Draft = s.Draft
		}
		return reply.Done, innerErr
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// finalize persists the accumulated draft. Called exactly once per wizard
// run: on failure the session stays in the sizes state so the input can be
// retried, on success the caller deletes the session.
func (e *Engine) finalize(ctx context.Context, s *session.Session, sizes storage.SizeList) (Reply, error) {
	s.Draft.Sizes = sizes

	id, err := e.store.InsertProduct(ctx, storage.Product{
		Name:        s.Draft.Name,
		Description: s.Draft.Description,
		Price:       s.Draft.Price,
		ImageURL:    s.Draft.ImageURL,
		Category:    s.Draft.Category,
		ProductType: s.Draft.ProductType,
		Sizes:       s.Draft.Sizes,
	})
	if err != nil {
		logger.Error(ctx, "wizard", "product.persist",
			slog.Int64("user_id", s.UserID),
			slog.String("err", err.Error()),
		)
		return Reply{}, fmt.Errorf("persist product: %w", err)
	}

	logger.Info(ctx, "wizard", "product.created",
		slog.Int64("user_id", s.UserID),
		slog.Int64("product_id", id),
	)
	return Reply{Done: true, ProductID: id, Draft: s.Draft}, nil
}

func reprompt(st session.State, text string) Reply {
	return Reply{State: st, Text: text, Invalid: true}
}

func promptFor(st session.State) string {
	switch st {
	case StateAwaitingName:
		return "Enter the product name:"
	case StateAwaitingDescription:
		return "Enter the product description:"
	case StateAwaitingPrice:
		return "Enter the product price (a number):"
	case StateAwaitingImageURL:
		return "Enter the product image URL:"
	case StateAwaitingCategory:
		return "Choose a category:"
	case StateAwaitingProductType:
		return "Choose a product type:"
	case StateAwaitingSizes:
		return "Enter sizes separated by commas:"
	default:
		return ""
	}
}

func splitSizes(text string) storage.SizeList {
	parts := strings.Split(text, ",")
	out := make(storage.SizeList, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
