// Package checkout drives an order from address entry to a confirmed order,
// either through the hosted payment gateway or as cash on delivery.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/payment"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"
)

// Cart is what checkout reads from and clears in the cart container.
type Cart interface {
	Lines() []domain.CartLine
	Total() decimal.Decimal
	Clear(ctx context.Context) error
}

type Config struct {
	GatewayKey string
	Currency   currency.Unit
	StoreName  string
	ThemeColor string
}

type Orchestrator struct {
	cart      Cart
	orders    port.OrderAPI
	gateway   port.PaymentGateway
	validator *AddressValidator
	cfg       Config
	log       logrus.FieldLogger

	newReceipt func() string

	busy atomic.Bool

	mu           sync.Mutex
	state        State
	address      domain.Address
	method       domain.PaymentMethod
	confirmation *domain.OrderConfirmation
}

// New starts a checkout in StateCollectingAddress with the gateway method
// preselected. A nil gateway makes the gateway path fail with ErrWidgetLoad.
func New(cart Cart, orders port.OrderAPI, gateway port.PaymentGateway, cfg Config, log logrus.FieldLogger) (*Orchestrator, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart is nil")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders is nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Currency == (currency.Unit{}) {
		cfg.Currency = currency.INR
	}

	v, err := NewAddressValidator()
	if err != nil {
		return nil, fmt.Errorf("NewAddressValidator: %w", err)
	}

	return &Orchestrator{
		cart:       cart,
		orders:     orders,
		gateway:    gateway,
		validator:  v,
		cfg:        cfg,
		log:        log.WithField("component", "checkout"),
		newReceipt: func() string { return "receipt_" + uuid.NewString() },
		state:      StateCollectingAddress,
		method:     domain.PaymentGateway,
	}, nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

func (o *Orchestrator) Address() domain.Address {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.address
}

func (o *Orchestrator) PaymentMethod() domain.PaymentMethod {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.method
}

func (o *Orchestrator) Confirmation() (domain.OrderConfirmation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.confirmation == nil {
		return domain.OrderConfirmation{}, false
	}
	return *o.confirmation, true
}

// SubmitAddress validates addr and moves on to payment selection. On a
// validation failure the state is unchanged and the error is a *ValidationError.
func (o *Orchestrator) SubmitAddress(addr domain.Address) error {
	if o.busy.Load() {
		return ErrSubmitInFlight
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !CanTransition(o.state, StateSelectingPayment) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.state, StateSelectingPayment)
	}

	addr, err := o.validator.Validate(addr)
	if err != nil {
		return err
	}

	o.address = addr
	o.state = StateSelectingPayment
	return nil
}

// EditAddress goes back to address entry, keeping the last submitted address.
func (o *Orchestrator) EditAddress() error {
	if o.busy.Load() {
		return ErrSubmitInFlight
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.transitionLocked(StateCollectingAddress)
}

func (o *Orchestrator) SelectPayment(method domain.PaymentMethod) error {
	if _, err := domain.ParsePaymentMethod(string(method)); err != nil {
		return err
	}
	if o.busy.Load() {
		return ErrSubmitInFlight
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateSelectingPayment {
		return fmt.Errorf("%w: payment selection in state %s", ErrInvalidTransition, o.state)
	}

	o.method = method
	return nil
}

// Preview computes the totals the order would be placed with right now.
func (o *Orchestrator) Preview() domain.Totals {
	return ComputeTotals(o.cart.Total(), o.PaymentMethod())
}

// PlaceOrder submits the order with the selected payment method. Only one
// submission runs at a time, a second concurrent call gets ErrSubmitInFlight.
// The cart is cleared and the state becomes StateConfirmed only once the
// backend has confirmed the order.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (domain.OrderConfirmation, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return domain.OrderConfirmation{}, ErrSubmitInFlight
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	state, addr, method := o.state, o.address, o.method
	o.mu.Unlock()

	if state != StateSelectingPayment {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: place order in state %s", ErrInvalidTransition, state)
	}

	lines := o.cart.Lines()
	if len(lines) == 0 {
		return domain.OrderConfirmation{}, ErrEmptyCart
	}

	totals := ComputeTotals(o.cart.Total(), method)
	order := domain.NewOrderRequest(lines, totals, method, addr)

	log := o.log.WithFields(logrus.Fields{
		"payment_method": method,
		"grand_total":    totals.GrandTotal.StringFixed(2),
	})

	var (
		conf domain.OrderConfirmation
		err  error
	)
	switch method {
	case domain.PaymentCOD:
		conf, err = o.placeCOD(ctx, order)
	default:
		conf, err = o.placeOnline(ctx, order, log)
	}
	if err != nil {
		log.WithError(err).Warn("order not placed")
		return domain.OrderConfirmation{}, err
	}

	o.complete(ctx, conf, log)
	return conf, nil
}

func (o *Orchestrator) placeOnline(ctx context.Context, order domain.OrderRequest, log logrus.FieldLogger) (domain.OrderConfirmation, error) {
	if o.gateway == nil {
		return domain.OrderConfirmation{}, ErrWidgetLoad
	}
	if err := o.gateway.EnsureLoaded(ctx); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: %w", ErrWidgetLoad, err)
	}

	po, err := o.orders.CreatePaymentOrder(ctx, port.PaymentOrderRequest{
		Amount:   order.GrandTotal,
		Currency: o.cfg.Currency.String(),
		Receipt:  o.newReceipt(),
	})
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: %w", ErrOrderCreation, err)
	}

	if o.cfg.GatewayKey == "" {
		return domain.OrderConfirmation{}, ErrMissingGatewayKey
	}

	out, err := o.gateway.Open(ctx, o.paymentOptions(order, po))
	if err != nil {
		return domain.OrderConfirmation{}, &PaymentFailedError{Reason: err.Error()}
	}

	switch out.Status {
	case payment.StatusSuccess:
	case payment.StatusFailed:
		return domain.OrderConfirmation{}, &PaymentFailedError{Reason: out.Reason}
	default:
		return domain.OrderConfirmation{}, ErrPaymentCancelled
	}

	paymentOrderID := out.OrderID
	if paymentOrderID == "" {
		paymentOrderID = po.ID
	}

	conf, err := o.orders.VerifyPayment(ctx, port.VerifyPaymentRequest{
		PaymentOrderID: paymentOrderID,
		PaymentID:      out.PaymentID,
		Signature:      out.Signature,
		Order:          order,
	})
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"order_id":   paymentOrderID,
			"payment_id": out.PaymentID,
		}).Error("payment captured by gateway but not verified, needs reconciliation")

		return domain.OrderConfirmation{}, &VerificationError{
			PaymentID:      out.PaymentID,
			PaymentOrderID: paymentOrderID,
			Err:            err,
		}
	}

	return conf, nil
}

func (o *Orchestrator) placeCOD(ctx context.Context, order domain.OrderRequest) (domain.OrderConfirmation, error) {
	conf, err := o.orders.CreateCODOrder(ctx, order)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("%w: %w", ErrCODOrder, err)
	}
	return conf, nil
}

func (o *Orchestrator) paymentOptions(order domain.OrderRequest, po port.PaymentOrder) payment.Options {
	amount := po.Amount
	if amount == 0 {
		amount = domain.Money{Amount: order.GrandTotal, Currency: o.cfg.Currency}.MinorUnits()
	}
	cur := po.Currency
	if cur == "" {
		cur = o.cfg.Currency.String()
	}

	addr := order.ShippingAddress

	return payment.Options{
		Key:         o.cfg.GatewayKey,
		Amount:      amount,
		Currency:    cur,
		OrderID:     po.ID,
		Name:        o.cfg.StoreName,
		Description: fmt.Sprintf("Order of %d item(s)", len(order.Items)),
		Prefill: payment.Prefill{
			Name:    addr.Name,
			Email:   addr.Email,
			Contact: addr.Phone,
		},
		Notes: map[string]string{
			"address": fmt.Sprintf("%s, %s, %s %s", addr.Street, addr.City, addr.State, addr.Pincode),
		},
		Theme: payment.Theme{Color: o.cfg.ThemeColor},
	}
}

// complete records a confirmed order. The order exists at this point, so a
// failure to clear the cart is only logged.
func (o *Orchestrator) complete(ctx context.Context, conf domain.OrderConfirmation, log logrus.FieldLogger) {
	if err := o.cart.Clear(ctx); err != nil {
		log.WithError(err).WithField("order_id", conf.OrderID).Error("clearing cart after order failed")
	}

	o.mu.Lock()
	o.state = StateConfirmed
	o.confirmation = &conf
	o.mu.Unlock()

	log.WithFields(logrus.Fields{
		"order_id":     conf.OrderID,
		"order_number": conf.OrderNumber,
	}).Info("order confirmed")
}

func (o *Orchestrator) transitionLocked(to State) error {
	if !CanTransition(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.state, to)
	}

	o.state = to
	return nil
}
