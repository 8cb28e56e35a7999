package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/till-ledger/internal/ledger"
	"github.com/sheikh-saqib/till-ledger/internal/models/events"
	"github.com/sheikh-saqib/till-ledger/internal/tasks"
	"go.uber.org/zap"
)

var ErrMalformedEvent = errors.New("hooks: malformed event")

// Dispatcher accepts background tasks.
type Dispatcher interface {
	Dispatch(t tasks.Task) bool
}

// Handler translates order and procurement events into ledger operations and
// background tasks. It holds no ledger logic of its own.
type Handler struct {
	ledger     *ledger.Ledger
	tasks      Dispatcher
	categories tasks.CategoryComputer
	providers  tasks.ProviderSummarizer
	logger     *zap.Logger
}

func NewHandler(l *ledger.Ledger, d Dispatcher, categories tasks.CategoryComputer, providers tasks.ProviderSummarizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: l, tasks: d, categories: categories, providers: providers, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, event events.OrderEvent) error {
	var (
		res ledger.Result
		err error
	)

	switch event.Type {
	case events.OrderCreated:
		if event.Order == nil {
			return malformed(event, "order")
		}
		if err := h.ledger.TrackOrder(ctx, *event.Order); err != nil {
			return err
		}
		res, err = h.ledger.CreateRegisterHistoryFromPaidOrder(ctx, *event.Order, event.Actor)

	case events.OrderPaymentCreated:
		if event.Order == nil || event.Payment == nil {
			return malformed(event, "order and payment")
		}
		if err := h.ledger.TrackOrder(ctx, *event.Order); err != nil {
			return err
		}
		res, err = h.ledger.IncreaseFromOrderPayment(ctx, *event.Order, *event.Payment)

	case events.OrderPaymentStatusChanged:
		if event.Order == nil {
			return malformed(event, "order")
		}
		order := *event.Order
		order.PaymentStatus = event.NewStatus
		if err := h.ledger.TrackOrder(ctx, order); err != nil {
			return err
		}
		res, err = h.ledger.CreateRegisterHistoryUsingPaymentStatus(ctx, order, event.PreviousStatus, event.NewStatus, event.Actor)

	case events.OrderDeleted:
		if event.Order == nil {
			return malformed(event, "order")
		}
		res, err = h.ledger.DeleteOrderSale(ctx, *event.Order, event.Actor)
		if err == nil {
			err = h.ledger.ForgetOrder(ctx, event.Order.ID)
		}

	case events.ProcurementDeleted:
		if event.ProviderID == "" {
			return malformed(event, "provider_id")
		}
		if h.providers != nil {
			h.tasks.Dispatch(tasks.ComputeProviderSummary(h.providers, event.ProviderID))
		}
		return nil

	case events.ProductCategoryChanged:
		if event.CategoryID == "" {
			return malformed(event, "category_id")
		}
		if h.categories != nil {
			h.tasks.Dispatch(tasks.ComputeCategoryProducts(h.categories, event.CategoryID))
		}
		return nil

	default:
		h.logger.Debug("ignoring event", zap.String("type", event.Type), zap.String("event_id", event.ID))
		return nil
	}

	if err != nil {
		return err
	}
	h.logger.Debug("event applied",
		zap.String("type", event.Type),
		zap.String("event_id", event.ID),
		zap.String("status", res.Status),
	)
	return nil
}

// Permanent reports whether redelivering the event can never succeed.
func (h *Handler) Permanent(err error) bool {
	return ledger.IsValidation(err) ||
		errors.Is(err, ledger.ErrRegisterNotFound) ||
		errors.Is(err, ErrMalformedEvent)
}

func malformed(event events.OrderEvent, missing string) error {
	return fmt.Errorf("%w: %s event %s has no %s", ErrMalformedEvent, event.Type, event.ID, missing)
}
