// Package billing integrates the Stripe subscription lifecycle: checkout
// session creation for plan upgrades and webhook-driven plan tagging on the
// user record.
package billing

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"
	"gorm.io/gorm"

	"github.com/cosmos-ai/cosmos-host/pkg/models"
	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// ErrSignature is returned when a webhook payload fails signature
// verification. Nothing is mutated in that case.
var ErrSignature = errors.New("webhook signature verification failed")

// ErrUnknownCustomer is returned when a subscription event references a
// Stripe customer no user record maps to.
var ErrUnknownCustomer = errors.New("no user for stripe customer")

// Service handles checkout sessions and webhook events.
type Service struct {
	db            *gorm.DB
	signingSecret string
}

// NewService creates a billing service. The Stripe API key is installed
// globally the way the stripe-go SDK expects.
func NewService(db *gorm.DB) *Service {
	stripe.Key = viper.GetString("STRIPE_SECRET_KEY")
	return &Service{
		db:            db,
		signingSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
	}
}

// CreateCheckoutSession creates a subscription checkout session for the user
// and the chosen plan. The caller's identity and plan are tagged as session
// metadata so the webhook can attribute the completed payment.
func (s *Service) CreateCheckoutSession(user *models.User, priceID, planID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(viper.GetString("CHECKOUT_SUCCESS_URL")),
		CancelURL:  stripe.String(viper.GetString("CHECKOUT_CANCEL_URL")),
	}
	if user.Email != nil {
		params.CustomerEmail = stripe.String(*user.Email)
	}
	params.AddMetadata("userId", user.ID.String())
	params.AddMetadata("planId", planID)

	checkoutSession, err := session.New(params)
	if err != nil {
		return "", errors.Wrap(err, "failed to create checkout session")
	}
	return checkoutSession.ID, nil
}

// VerifyEvent checks the provider signature on a raw webhook payload and
// parses the event. Verification failure drops the request before any
// processing.
func (s *Service) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.signingSecret)
	if err != nil {
		return stripe.Event{}, errors.Wrap(ErrSignature, err.Error())
	}
	return event, nil
}

// HandleEvent applies a verified webhook event to the user store.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		logging.LogDebugf("Ignoring webhook event type %s", event.Type)
		return nil
	}
}

// handleCheckoutCompleted tags the paying user with the purchased plan and
// persists the customer/subscription ids. Storing the customer id here is
// what lets later subscription events find their way back to a user.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		return errors.Wrap(err, "failed to parse checkout session")
	}

	userIDStr := checkoutSession.Metadata["userId"]
	planID := checkoutSession.Metadata["planId"]
	if userIDStr == "" || planID == "" {
		logging.LogWarningf("Checkout session %s completed without user/plan metadata", checkoutSession.ID)
		return nil
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return errors.Wrap(err, "invalid userId metadata")
	}

	updates := map[string]interface{}{"plan": planID}
	if checkoutSession.Customer != nil {
		updates["stripe_customer_id"] = checkoutSession.Customer.ID
	}
	if checkoutSession.Subscription != nil {
		updates["subscription_id"] = checkoutSession.Subscription.ID
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update user plan")
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("no user %s for completed checkout", userID)
	}

	logging.LogInfof("Updated user %s to plan %s", userID, planID)
	return nil
}

// handleSubscriptionUpdated downgrades users whose subscription left a good
// standing. The customer id stored at checkout time resolves the user.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return errors.Wrap(err, "failed to parse subscription")
	}
	if subscription.Customer == nil {
		return errors.New("subscription event without customer")
	}

	switch subscription.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		// Plan changes between paid tiers arrive as checkout completions;
		// an active subscription needs no correction here.
		return nil
	default:
		return s.downgradeByCustomer(ctx, subscription.Customer.ID)
	}
}

// handleSubscriptionDeleted resets the user to the free plan.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return errors.Wrap(err, "failed to parse subscription")
	}
	if subscription.Customer == nil {
		return errors.New("subscription event without customer")
	}
	return s.downgradeByCustomer(ctx, subscription.Customer.ID)
}

func (s *Service) downgradeByCustomer(ctx context.Context, customerID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("stripe_customer_id = ?", customerID).
		Updates(map[string]interface{}{
			"plan":            models.PlanFree,
			"subscription_id": nil,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to downgrade user")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrUnknownCustomer, "customer %s", customerID)
	}

	logging.LogInfof("Downgraded stripe customer %s to plan %s", customerID, models.PlanFree)
	return nil
}
