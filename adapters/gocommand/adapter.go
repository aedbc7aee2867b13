package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	accounttx "github.com/goliatone/go-accounttx"
	accountcommand "github.com/goliatone/go-accounttx/command"
	"github.com/goliatone/go-accounttx/core"
	accountquery "github.com/goliatone/go-accounttx/query"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// FacadeSubscriptions holds the dispatcher subscriptions made by
// RegisterFacade.
type FacadeSubscriptions []commanddispatcher.Subscription

// Unsubscribe detaches every facade handler from the dispatcher.
func (s FacadeSubscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterFacade registers every command and query of facade with adapter
// and subscribes them to the global dispatcher. On failure the handlers
// subscribed so far are detached again.
func RegisterFacade(adapter *RegistryAdapter, facade *accounttx.Facade, runnerOpts ...runner.Option) (FacadeSubscriptions, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()

	var (
		subscriptions FacadeSubscriptions
		errs          []error
	)
	track := func(subscription commanddispatcher.Subscription, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		subscriptions = append(subscriptions, subscription)
	}

	track(RegisterAndSubscribe[accountcommand.CreateTransactionMessage](adapter, commands.CreateTransaction, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.PrepareTransactionMessage](adapter, commands.PrepareTransaction, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.CommitTransactionMessage](adapter, commands.CommitTransaction, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.AbortTransactionMessage](adapter, commands.AbortTransaction, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.RegisterUserMessage](adapter, commands.RegisterUser, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.UpdateUserMessage](adapter, commands.UpdateUser, runnerOpts...))
	track(RegisterAndSubscribe[accountcommand.DeleteUserMessage](adapter, commands.DeleteUser, runnerOpts...))
	if commands.SweepTransactions != nil {
		track(RegisterAndSubscribe[accountcommand.SweepTransactionsMessage](adapter, commands.SweepTransactions, runnerOpts...))
	}
	track(RegisterAndSubscribeQuery[accountquery.TransactionStatusMessage, core.TransactionStatusView](adapter, queries.TransactionStatus, runnerOpts...))
	track(RegisterAndSubscribeQuery[accountquery.GetUserMessage, core.UserProfile](adapter, queries.GetUser, runnerOpts...))
	track(RegisterAndSubscribeQuery[accountquery.AuthenticateMessage, core.UserProfile](adapter, queries.Authenticate, runnerOpts...))

	if len(errs) > 0 {
		subscriptions.Unsubscribe()
		return nil, errors.Join(errs...)
	}
	return subscriptions, nil
}
