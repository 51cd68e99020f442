// Package services holds the ledger's business operations. Every mutating
// operation runs in exactly one store transaction and publishes a ledger
// event only after it commits.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/settings"
	"budget/internal/storage"
)

// defaultAccountPattern matches the placeholder accounts created by early
// imports ("Bank Account 1", ...).
const defaultAccountPattern = "Bank Account %"

// EventPublisher receives ledger events after commit. *amqp.Client
// satisfies it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService applies purchases, income, transfers and administrative
// overrides while keeping running balances in step with the log.
type LedgerService struct {
	store     *storage.Store
	publisher EventPublisher
}

// NewLedgerService creates the service. publisher may be nil.
func NewLedgerService(store *storage.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// RecordPurchase stores a purchase and charges its account and category.
// Overdraft is allowed.
func (s *LedgerService) RecordPurchase(ctx context.Context, in core.NewPurchase) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var tx core.Transaction
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		tx, err = recordPurchase(ctx, q, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record purchase: %w", err)
	}

	slog.InfoContext(ctx, "Purchase recorded",
		"id", tx.ID,
		"user", tx.User,
		"amount_cents", tx.Amount.Cents,
		"account_id", derefID(tx.AccountID),
		"category_id", derefID(tx.CategoryID))

	s.publish(ctx, transactionEvent(amqp.EventPurchaseRecorded, tx))
	return tx, nil
}

func recordPurchase(ctx context.Context, q *storage.Queries, in core.NewPurchase) (core.Transaction, error) {
	if in.AccountID != nil {
		if _, err := q.LockAccount(ctx, *in.AccountID); err != nil {
			return core.Transaction{}, err
		}
	}

	categoryID := in.CategoryID
	if categoryID == nil && strings.TrimSpace(in.CategoryName) != "" {
		period, err := q.ActivePeriod(ctx)
		if err != nil {
			return core.Transaction{}, err
		}
		cat, err := q.GetCategoryByName(ctx, strings.TrimSpace(in.CategoryName), period.ID)
		if err != nil {
			return core.Transaction{}, err
		}
		categoryID = &cat.ID
	}
	if categoryID != nil {
		if _, err := q.LockCategory(ctx, *categoryID); err != nil {
			return core.Transaction{}, err
		}
	}

	tx, err := q.InsertTransaction(ctx, core.Transaction{
		Kind:        core.KindPurchase,
		User:        strings.TrimSpace(in.User),
		Amount:      in.Amount,
		AccountID:   in.AccountID,
		CategoryID:  categoryID,
		Description: in.Description,
		OccurredAt:  in.OccurredAt,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	if tx.AccountID != nil {
		if err := q.AdjustAccountBalance(ctx, *tx.AccountID, tx.Amount.Neg()); err != nil {
			return core.Transaction{}, err
		}
	}
	if tx.CategoryID != nil {
		if err := q.AdjustCategoryBalance(ctx, *tx.CategoryID, tx.Amount.Neg()); err != nil {
			return core.Transaction{}, err
		}
	}
	return tx, nil
}

// RecordPurchases stores a batch from an offline client in one commit.
// Any invalid row rejects the whole batch.
func (s *LedgerService) RecordPurchases(ctx context.Context, batch []core.NewPurchase) ([]core.Transaction, error) {
	for i, in := range batch {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("purchase %d: %w", i, err)
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	txs := make([]core.Transaction, 0, len(batch))
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		for i, in := range batch {
			tx, err := recordPurchase(ctx, q, in)
			if err != nil {
				return fmt.Errorf("purchase %d: %w", i, err)
			}
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync purchases: %w", err)
	}

	ev := amqp.NewLedgerEvent(amqp.EventPurchasesSynced, 0)
	for _, tx := range txs {
		ev.AmountCents += tx.Amount.Cents
		ev.AccountIDs = appendID(ev.AccountIDs, tx.AccountID)
		ev.CategoryIDs = appendID(ev.CategoryIDs, tx.CategoryID)
	}
	slog.InfoContext(ctx, "Purchases synced", "count", len(txs), "amount_cents", ev.AmountCents)
	s.publish(ctx, ev)
	return txs, nil
}

// RecordIncome credits an account. Income never touches a category.
func (s *LedgerService) RecordIncome(ctx context.Context, in core.NewIncome) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var tx core.Transaction
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		tx, err = recordIncome(ctx, q, in)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record income: %w", err)
	}

	slog.InfoContext(ctx, "Income recorded",
		"id", tx.ID,
		"user", tx.User,
		"amount_cents", tx.Amount.Cents,
		"account_id", in.AccountID)

	s.publish(ctx, transactionEvent(amqp.EventIncomeRecorded, tx))
	return tx, nil
}

func recordIncome(ctx context.Context, q *storage.Queries, in core.NewIncome) (core.Transaction, error) {
	if _, err := q.LockAccount(ctx, in.AccountID); err != nil {
		return core.Transaction{}, err
	}
	accountID := in.AccountID
	tx, err := q.InsertTransaction(ctx, core.Transaction{
		Kind:        core.KindIncome,
		User:        strings.TrimSpace(in.User),
		Amount:      in.Amount,
		AccountID:   &accountID,
		Description: in.IncomeDescription(),
		OccurredAt:  in.OccurredAt,
	})
	if err != nil {
		return core.Transaction{}, err
	}
	if err := q.AdjustAccountBalance(ctx, accountID, in.Amount); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// RecordTransfer moves money between two accounts. The source must hold
// at least the amount; categories are never touched.
func (s *LedgerService) RecordTransfer(ctx context.Context, in core.NewTransfer) (core.Transfer, error) {
	if err := in.Validate(); err != nil {
		return core.Transfer{}, err
	}

	var transfer core.Transfer
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		// Lock in id order so concurrent opposite transfers cannot deadlock.
		first, second := in.FromAccountID, in.ToAccountID
		if second < first {
			first, second = second, first
		}
		locked := make(map[int64]core.Account, 2)
		for _, id := range []int64{first, second} {
			acc, err := q.LockAccount(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}

		from := locked[in.FromAccountID]
		if from.Balance.Cents < in.Amount.Cents {
			return &core.InsufficientFundsError{
				AccountID: from.ID,
				Balance:   from.Balance,
				Requested: in.Amount,
			}
		}

		if err := q.AdjustAccountBalance(ctx, in.FromAccountID, in.Amount.Neg()); err != nil {
			return err
		}
		if err := q.AdjustAccountBalance(ctx, in.ToAccountID, in.Amount); err != nil {
			return err
		}

		in.Originator = strings.TrimSpace(in.Originator)
		var err error
		transfer, err = q.InsertTransfer(ctx, in)
		return err
	})
	if err != nil {
		return core.Transfer{}, fmt.Errorf("record transfer: %w", err)
	}

	slog.InfoContext(ctx, "Transfer recorded",
		"id", transfer.ID,
		"from_account_id", transfer.FromAccountID,
		"to_account_id", transfer.ToAccountID,
		"amount_cents", transfer.Amount.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventTransferRecorded, transfer.ID)
	ev.AccountIDs = []int64{transfer.FromAccountID, transfer.ToAccountID}
	ev.AmountCents = transfer.Amount.Cents
	s.publish(ctx, ev)
	return transfer, nil
}

// DeletePurchase removes a purchase or income row and reverses exactly the
// effect it applied, using the stored amount and kind.
func (s *LedgerService) DeletePurchase(ctx context.Context, id int64) (core.Transaction, error) {
	var tx core.Transaction
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		tx, err = q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		if tx.AccountID != nil {
			if _, err := q.LockAccount(ctx, *tx.AccountID); err != nil {
				return err
			}
			if err := q.AdjustAccountBalance(ctx, *tx.AccountID, tx.Effect().Neg()); err != nil {
				return err
			}
		}
		if tx.Kind == core.KindPurchase && tx.CategoryID != nil {
			if _, err := q.LockCategory(ctx, *tx.CategoryID); err != nil {
				return err
			}
			if err := q.AdjustCategoryBalance(ctx, *tx.CategoryID, tx.Amount); err != nil {
				return err
			}
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete purchase: %w", err)
	}

	slog.InfoContext(ctx, "Purchase deleted",
		"id", tx.ID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents)

	s.publish(ctx, transactionEvent(amqp.EventPurchaseDeleted, tx))
	return tx, nil
}

// UpdateAccountBalance overrides the running balance. The override becomes
// the new reconciliation baseline.
func (s *LedgerService) UpdateAccountBalance(ctx context.Context, id int64, balance core.Money) (core.Account, error) {
	var acc core.Account
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.LockAccount(ctx, id); err != nil {
			return err
		}
		if err := q.RebaseAccount(ctx, id, balance); err != nil {
			return err
		}
		var err error
		acc, err = q.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account balance: %w", err)
	}

	slog.InfoContext(ctx, "Account balance overridden", "account_id", id, "balance_cents", balance.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventAccountRebased, id)
	ev.AccountIDs = []int64{id}
	ev.AmountCents = balance.Cents
	s.publish(ctx, ev)
	return acc, nil
}

// UpdateBudgetedAmount changes a category's target. The running balance is
// left alone.
func (s *LedgerService) UpdateBudgetedAmount(ctx context.Context, id int64, amount core.Money) (core.Category, error) {
	if amount.IsNegative() {
		return core.Category{}, core.NewValidationError("budgeted_amount", core.ErrNegativeAmount)
	}

	var cat core.Category
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.LockCategory(ctx, id); err != nil {
			return err
		}
		if err := q.SetBudgeted(ctx, id, amount); err != nil {
			return err
		}
		var err error
		cat, err = q.GetCategory(ctx, id)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update budgeted amount: %w", err)
	}

	slog.InfoContext(ctx, "Budgeted amount updated", "category_id", id, "budgeted_cents", amount.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventBudgetUpdated, id)
	ev.CategoryIDs = []int64{id}
	ev.AmountCents = amount.Cents
	s.publish(ctx, ev)
	return cat, nil
}

// CreateAccount adds an account with an opening balance. The type defaults
// to bank; duplicate names are a constraint violation.
func (s *LedgerService) CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Type == "" {
		in.Type = core.AccountBank
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	acc, err := s.store.CreateAccount(ctx, in)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "account_id", acc.ID, "name", acc.Name, "balance_cents", acc.Balance.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventAccountCreated, acc.ID)
	ev.AccountIDs = []int64{acc.ID}
	s.publish(ctx, ev)
	return acc, nil
}

// DeleteAccount removes an account. Its purchases stay in the log without
// an account; its transfers are removed and the counterpart accounts are
// rebased so their balances are unchanged and still reconcile.
func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	var counterparts []int64
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.LockAccount(ctx, id); err != nil {
			return err
		}
		var err error
		counterparts, err = q.DeleteAccount(ctx, id)
		if err != nil {
			return err
		}
		for _, other := range counterparts {
			acc, err := q.LockAccount(ctx, other)
			if err != nil {
				return err
			}
			if err := q.RebaseAccount(ctx, other, acc.Balance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	slog.InfoContext(ctx, "Account deleted", "account_id", id, "rebased_counterparts", len(counterparts))

	ev := amqp.NewLedgerEvent(amqp.EventAccountDeleted, id)
	ev.AccountIDs = counterparts
	s.publish(ctx, ev)
	return nil
}

// CreateCategory adds a category with a zero running balance. A nil period
// means the active period.
func (s *LedgerService) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	var cat core.Category
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var period core.Period
		var err error
		if in.PeriodID == nil {
			period, err = q.ActivePeriod(ctx)
		} else {
			period, err = q.GetPeriod(ctx, *in.PeriodID)
		}
		if err != nil {
			return err
		}
		cat, err = q.CreateCategory(ctx, in.Name, &period.ID, in.Budgeted, core.Money{})
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created",
		"category_id", cat.ID,
		"name", cat.Name,
		"period_id", derefID(cat.PeriodID),
		"budgeted_cents", cat.Budgeted.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventCategoryCreated, cat.ID)
	ev.CategoryIDs = []int64{cat.ID}
	s.publish(ctx, ev)
	return cat, nil
}

// EnsureAccounts creates the template's accounts that do not exist yet,
// with a zero balance. It returns the names it created.
func (s *LedgerService) EnsureAccounts(ctx context.Context, refs []settings.AccountRef) ([]string, error) {
	var created []string
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		for _, ref := range refs {
			_, err := q.GetAccountByName(ctx, ref.Name())
			if err == nil {
				continue
			}
			if !core.IsNotFound(err) {
				return err
			}
			if _, err := q.CreateAccount(ctx, core.NewAccount{Name: ref.Name(), Type: core.AccountBank}); err != nil {
				return err
			}
			created = append(created, ref.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure accounts: %w", err)
	}
	if len(created) > 0 {
		slog.InfoContext(ctx, "Template accounts created", "count", len(created))
	}
	return created, nil
}

// PruneDefaultAccounts deletes unused placeholder accounts.
func (s *LedgerService) PruneDefaultAccounts(ctx context.Context) ([]string, error) {
	var pruned []string
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		pruned, err = q.PruneDefaultAccounts(ctx, defaultAccountPattern)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("prune default accounts: %w", err)
	}
	slog.InfoContext(ctx, "Default accounts pruned", "count", len(pruned))
	return pruned, nil
}

// publish sends ev after commit. Failures are logged, never returned.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"event_id", ev.ID,
			"type", ev.Type,
			"error", err)
	}
}

func transactionEvent(typ amqp.EventType, tx core.Transaction) *amqp.LedgerEvent {
	ev := amqp.NewLedgerEvent(typ, tx.ID)
	ev.AccountIDs = appendID(nil, tx.AccountID)
	ev.CategoryIDs = appendID(nil, tx.CategoryID)
	ev.AmountCents = tx.Amount.Cents
	return ev
}

func appendID(ids []int64, id *int64) []int64 {
	if id == nil {
		return ids
	}
	for _, existing := range ids {
		if existing == *id {
			return ids
		}
	}
	return append(ids, *id)
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
