package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vexa-ai/billing/internal/domain/customer"
	"github.com/vexa-ai/billing/internal/domain/subscription"
	ierr "github.com/vexa-ai/billing/internal/errors"
)

// InMemoryProvider is an in-memory implementation of provider.Provider for
// testing. Errors can be injected per call site to simulate provider outages.
type InMemoryProvider struct {
	mu sync.RWMutex

	customers     map[string]*customer.Customer // keyed by email
	subscriptions map[string][]*subscription.Subscription
	nextID        int

	// injectable failures
	ListErr error
	FindErr error
	GetErr  error
}

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		customers:     make(map[string]*customer.Customer),
		subscriptions: make(map[string][]*subscription.Subscription),
	}
}

// AddCustomer registers a customer and returns it
func (p *InMemoryProvider) AddCustomer(email string) *customer.Customer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cust, ok := p.customers[email]; ok {
		return cust
	}
	p.nextID++
	cust := &customer.Customer{
		ID:    fmt.Sprintf("cus_%03d", p.nextID),
		Email: email,
	}
	p.customers[email] = cust
	return cust
}

// SetSubscriptions replaces the customer's subscription list, simulating a
// change of provider truth between reconciliations
func (p *InMemoryProvider) SetSubscriptions(customerID string, subs ...*subscription.Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[customerID] = subs
}

func (p *InMemoryProvider) ListSubscriptions(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ListErr != nil {
		return nil, p.ListErr
	}
	return p.subscriptions[customerID], nil
}

func (p *InMemoryProvider) GetSubscription(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.GetErr != nil {
		return nil, p.GetErr
	}
	for _, subs := range p.subscriptions {
		for _, sub := range subs {
			if sub.ID == subscriptionID {
				return sub, nil
			}
		}
	}
	return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
}

func (p *InMemoryProvider) GetCustomer(ctx context.Context, customerID string) (*customer.Customer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.GetErr != nil {
		return nil, p.GetErr
	}
	for _, cust := range p.customers {
		if cust.ID == customerID {
			return cust, nil
		}
	}
	return nil, ierr.NewError("customer not found").Mark(ierr.ErrNotFound)
}

func (p *InMemoryProvider) FindCustomerByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.FindErr != nil {
		return nil, p.FindErr
	}
	if cust, ok := p.customers[email]; ok {
		return cust, nil
	}
	return nil, ierr.NewError("customer not found").Mark(ierr.ErrNotFound)
}

func (p *InMemoryProvider) FindOrCreateCustomer(ctx context.Context, email string) (*customer.Customer, error) {
	if p.FindErr != nil {
		return nil, p.FindErr
	}
	return p.AddCustomer(email), nil
}
