package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
	"arcade/random"
	"arcade/store"
)

// Economy tuning.
const (
	DailyAmount   = 150
	DailyCooldown = 24 * time.Hour

	WorkMinAmount = 10
	WorkMaxAmount = 70
	WorkCooldown  = time.Hour
)

// LedgerService owns every balance mutation. Each operation is exactly one
// store mutate so its check-and-apply sequence cannot interleave with a
// concurrent operation on the same account.
type LedgerService struct {
	store   store.Store
	bus     *events.Bus
	catalog *models.Catalog
	clock   Clock
	rng     random.Source
	sched   *Scheduler
}

// NewLedgerService creates a new ledger service. sched may be nil when
// cooldown notifications are not wanted.
func NewLedgerService(st store.Store, bus *events.Bus, catalog *models.Catalog, clock Clock, rng random.Source, sched *Scheduler) *LedgerService {
	return &LedgerService{
		store:   st,
		bus:     bus,
		catalog: catalog,
		clock:   clock,
		rng:     rng,
		sched:   sched,
	}
}

// Balance returns the account, or a fresh default when none is stored yet.
// Read failures degrade to the default: an account is the one record whose
// default is always semantically valid.
func (s *LedgerService) Balance(ctx context.Context, guildID, userID int64) (*models.Account, error) {
	acct, found, err := store.GetRecord[models.Account](ctx, s.store, accountKey(guildID, userID))
	if err != nil {
		log.WithFields(log.Fields{
			"guildID": guildID,
			"userID":  userID,
			"error":   err,
		}).Warn("Account read failed, serving default")
		found = false
	}
	if !found {
		return models.NewAccount(guildID, userID, s.clock.Now()), nil
	}
	return acct, nil
}

// Credit adds amount to the account.
func (s *LedgerService) Credit(ctx context.Context, guildID, userID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, models.ErrIllegalAction
	}
	return s.adjust(ctx, guildID, userID, amount, reason, false)
}

// Debit subtracts amount from the account, failing with ErrInsufficientFunds
// when the balance cannot cover it.
func (s *LedgerService) Debit(ctx context.Context, guildID, userID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, models.ErrIllegalAction
	}
	pending := events.NewPendingBus(s.bus)
	var newBalance int64
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		old := acct.Balance
		if err := acct.Debit(amount); err != nil {
			return store.OpSkip, err
		}
		acct.UpdatedAt = now
		newBalance = acct.Balance
		pending.Publish(events.BalanceChangedEvent{
			GuildID:    guildID,
			UserID:     userID,
			OldBalance: old,
			NewBalance: acct.Balance,
			Reason:     reason,
		})
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return 0, err
	}
	pending.Flush(ctx)
	return newBalance, nil
}

// Transfer moves amount between two accounts as one atomic unit: no reader
// ever observes the sender debited without the recipient credited.
func (s *LedgerService) Transfer(ctx context.Context, guildID, fromID, toID, amount int64) (*models.TransferResult, error) {
	if amount <= 0 || fromID == toID {
		return nil, models.ErrIllegalAction
	}
	pending := events.NewPendingBus(s.bus)
	var result *models.TransferResult
	err := store.MutatePair(ctx, s.store, accountKey(guildID, fromID), accountKey(guildID, toID),
		func(from, to *models.Account, foundFrom, foundTo bool) error {
			now := s.clock.Now()
			ensureAccount(from, foundFrom, guildID, fromID, now)
			ensureAccount(to, foundTo, guildID, toID, now)
			oldFrom, oldTo := from.Balance, to.Balance
			if err := from.Debit(amount); err != nil {
				return err
			}
			if err := to.Credit(amount); err != nil {
				return err
			}
			from.UpdatedAt = now
			to.UpdatedAt = now
			pending.Publish(events.BalanceChangedEvent{
				GuildID: guildID, UserID: fromID,
				OldBalance: oldFrom, NewBalance: from.Balance,
				Reason: events.ReasonTransfer,
			})
			pending.Publish(events.BalanceChangedEvent{
				GuildID: guildID, UserID: toID,
				OldBalance: oldTo, NewBalance: to.Balance,
				Reason: events.ReasonTransfer,
			})
			result = &models.TransferResult{FromBalance: from.Balance, ToBalance: to.Balance}
			return nil
		})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// ClaimDaily credits the fixed daily reward once per cooldown window. The
// cooldown check and the credit land in the same mutate, so two concurrent
// claims inside one window cannot both succeed.
func (s *LedgerService) ClaimDaily(ctx context.Context, guildID, userID int64) (*models.DailyResult, error) {
	pending := events.NewPendingBus(s.bus)
	var result *models.DailyResult
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		if remaining := acct.DailyRemaining(now, DailyCooldown); remaining > 0 {
			return store.OpSkip, models.NewCooldownError(remaining)
		}
		old := acct.Balance
		if err := acct.Credit(DailyAmount); err != nil {
			return store.OpSkip, err
		}
		claimed := now
		acct.LastDaily = &claimed
		acct.UpdatedAt = now
		pending.Publish(events.BalanceChangedEvent{
			GuildID: guildID, UserID: userID,
			OldBalance: old, NewBalance: acct.Balance,
			Reason: events.ReasonDaily,
		})
		result = &models.DailyResult{
			Amount:     DailyAmount,
			NewBalance: acct.Balance,
			NextClaim:  now.Add(DailyCooldown),
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	if s.sched != nil {
		s.sched.Schedule(result.NextClaim, Action{
			Kind:     ActionCooldownElapsed,
			GuildID:  guildID,
			TargetID: userID,
			Claim:    "daily",
		})
	}
	return result, nil
}

// ClaimWork credits a randomized reward once per hour, flavored with a job
// from the catalog.
func (s *LedgerService) ClaimWork(ctx context.Context, guildID, userID int64) (*models.WorkResult, error) {
	pending := events.NewPendingBus(s.bus)
	var result *models.WorkResult
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		if remaining := acct.WorkRemaining(now, WorkCooldown); remaining > 0 {
			return store.OpSkip, models.NewCooldownError(remaining)
		}
		amount := int64(WorkMinAmount + s.rng.Intn(WorkMaxAmount-WorkMinAmount+1))
		job := s.catalog.Jobs[s.rng.Intn(len(s.catalog.Jobs))]
		old := acct.Balance
		if err := acct.Credit(amount); err != nil {
			return store.OpSkip, err
		}
		worked := now
		acct.LastWork = &worked
		acct.UpdatedAt = now
		pending.Publish(events.BalanceChangedEvent{
			GuildID: guildID, UserID: userID,
			OldBalance: old, NewBalance: acct.Balance,
			Reason: events.ReasonWork,
		})
		result = &models.WorkResult{
			Job:        job,
			Amount:     amount,
			NewBalance: acct.Balance,
			NextClaim:  now.Add(WorkCooldown),
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	if s.sched != nil {
		s.sched.Schedule(result.NextClaim, Action{
			Kind:     ActionCooldownElapsed,
			GuildID:  guildID,
			TargetID: userID,
			Claim:    "work",
		})
	}
	return result, nil
}

// Gamble stakes amount on a d100 roll and applies the net delta atomically:
// 1-39 loses the stake, 40-59 pushes, 60-89 returns it half again, 90-100
// doubles it.
func (s *LedgerService) Gamble(ctx context.Context, guildID, userID, stake int64) (*models.GambleResult, error) {
	if stake <= 0 {
		return nil, models.ErrIllegalAction
	}
	pending := events.NewPendingBus(s.bus)
	var result *models.GambleResult
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		if acct.Balance < stake {
			return store.OpSkip, models.ErrInsufficientFunds
		}

		roll := 1 + s.rng.Intn(100)
		var outcome models.GambleOutcome
		var delta int64
		switch {
		case roll >= 90:
			outcome = models.GambleWin
			delta = stake
		case roll >= 60:
			outcome = models.GambleWin
			delta = stake / 2
		case roll >= 40:
			outcome = models.GamblePush
			delta = 0
		default:
			outcome = models.GambleLose
			delta = -stake
		}

		old := acct.Balance
		acct.Balance += delta
		acct.UpdatedAt = now
		if delta != 0 {
			pending.Publish(events.BalanceChangedEvent{
				GuildID: guildID, UserID: userID,
				OldBalance: old, NewBalance: acct.Balance,
				Reason: events.ReasonGamble,
			})
		}
		result = &models.GambleResult{
			Roll:       roll,
			Outcome:    outcome,
			Delta:      delta,
			NewBalance: acct.Balance,
			Lucky:      acct.LuckyActive(now),
		}
		if delta == 0 {
			return store.OpSkip, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// Buy purchases a catalog item: debit and effect apply as one unit. Durable
// items can be owned once, consumables pay out instantly, timed items extend
// the account's lucky window.
func (s *LedgerService) Buy(ctx context.Context, guildID, userID int64, itemID string) (*models.PurchaseResult, error) {
	item, ok := s.catalog.Item(itemID)
	if !ok {
		return nil, models.ErrUnknownItem
	}
	pending := events.NewPendingBus(s.bus)
	var result *models.PurchaseResult
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		if item.Kind == models.ItemKindDurable && acct.Owns(item.ID) {
			return store.OpSkip, models.ErrAlreadyOwned
		}
		old := acct.Balance
		if err := acct.Debit(item.Price); err != nil {
			return store.OpSkip, err
		}

		result = &models.PurchaseResult{Item: item}
		switch item.Kind {
		case models.ItemKindDurable:
			acct.AddItem(item.ID)
		case models.ItemKindConsumable:
			payout := item.PayoutMin + int64(s.rng.Intn(int(item.PayoutMax-item.PayoutMin)+1))
			if err := acct.Credit(payout); err != nil {
				return store.OpSkip, err
			}
			result.Payout = payout
		case models.ItemKindTimed:
			base := now
			if acct.LuckyUntil != nil && acct.LuckyUntil.After(now) {
				base = *acct.LuckyUntil
			}
			until := base.Add(item.Duration())
			acct.LuckyUntil = &until
			result.ActiveUntil = &until
		}
		acct.UpdatedAt = now
		result.NewBalance = acct.Balance

		pending.Publish(events.ItemPurchasedEvent{
			GuildID: guildID, UserID: userID,
			ItemID: item.ID, Price: item.Price,
		})
		pending.Publish(events.BalanceChangedEvent{
			GuildID: guildID, UserID: userID,
			OldBalance: old, NewBalance: acct.Balance,
			Reason: events.ReasonPurchase,
		})
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// Leaderboard returns the guild's top accounts by balance.
func (s *LedgerService) Leaderboard(ctx context.Context, guildID int64, n int) ([]*models.Account, error) {
	if n <= 0 {
		return nil, models.ErrIllegalAction
	}
	entries, err := s.store.List(ctx, store.KindAccount, formatID(guildID))
	if err != nil {
		return nil, err
	}
	accounts := decodeAccounts(entries)
	sortAccountsByBalance(accounts)
	if len(accounts) > n {
		accounts = accounts[:n]
	}
	return accounts, nil
}

// AddCoins is the admin credit.
func (s *LedgerService) AddCoins(ctx context.Context, guildID, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, models.ErrIllegalAction
	}
	return s.adjust(ctx, guildID, userID, amount, events.ReasonAdmin, false)
}

// RemoveCoins is the admin debit; it clamps at zero instead of failing.
func (s *LedgerService) RemoveCoins(ctx context.Context, guildID, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, models.ErrIllegalAction
	}
	return s.adjust(ctx, guildID, userID, -amount, events.ReasonAdmin, true)
}

// SetBalance pins an account to an exact balance.
func (s *LedgerService) SetBalance(ctx context.Context, guildID, userID, balance int64) (int64, error) {
	if balance < 0 {
		return 0, models.ErrIllegalAction
	}
	pending := events.NewPendingBus(s.bus)
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		old := acct.Balance
		acct.Balance = balance
		acct.UpdatedAt = now
		if old != balance {
			pending.Publish(events.BalanceChangedEvent{
				GuildID: guildID, UserID: userID,
				OldBalance: old, NewBalance: balance,
				Reason: events.ReasonAdmin,
			})
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return 0, err
	}
	pending.Flush(ctx)
	return balance, nil
}

// GiveAll credits amount to every stored account in the guild, one atomic
// unit per account. Returns how many accounts were credited.
func (s *LedgerService) GiveAll(ctx context.Context, guildID, amount int64) (int, error) {
	if amount <= 0 {
		return 0, models.ErrIllegalAction
	}
	entries, err := s.store.List(ctx, store.KindAccount, formatID(guildID))
	if err != nil {
		return 0, err
	}
	credited := 0
	for _, entry := range entries {
		if len(entry.Key.Parts) != 2 {
			continue
		}
		userID, err := parseID(entry.Key.Parts[1])
		if err != nil {
			continue
		}
		if _, err := s.adjust(ctx, guildID, userID, amount, events.ReasonAdmin, false); err != nil {
			log.WithFields(log.Fields{
				"guildID": guildID,
				"userID":  userID,
				"error":   err,
			}).Warn("Skipping account during give-all")
			continue
		}
		credited++
	}
	return credited, nil
}

// adjust applies a signed delta to one account. With clampZero a negative
// delta bottoms out at zero instead of failing.
func (s *LedgerService) adjust(ctx context.Context, guildID, userID, delta int64, reason string, clampZero bool) (int64, error) {
	if delta == 0 {
		return 0, models.ErrIllegalAction
	}
	pending := events.NewPendingBus(s.bus)
	var newBalance int64
	err := store.MutateRecordLenient(ctx, s.store, accountKey(guildID, userID), func(acct *models.Account, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureAccount(acct, found, guildID, userID, now)
		old := acct.Balance
		next := old + delta
		if next < 0 {
			if !clampZero {
				return store.OpSkip, models.ErrInsufficientFunds
			}
			next = 0
		}
		acct.Balance = next
		acct.UpdatedAt = now
		newBalance = next
		if next != old {
			pending.Publish(events.BalanceChangedEvent{
				GuildID: guildID, UserID: userID,
				OldBalance: old, NewBalance: next,
				Reason: reason,
			})
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return 0, err
	}
	pending.Flush(ctx)
	return newBalance, nil
}

// ensureAccount initializes a default account in place when the record was
// absent.
func ensureAccount(acct *models.Account, found bool, guildID, userID int64, now time.Time) {
	if !found {
		*acct = *models.NewAccount(guildID, userID, now)
	}
}

func decodeAccounts(entries []store.Entry) []*models.Account {
	accounts := make([]*models.Account, 0, len(entries))
	for _, entry := range entries {
		acct := new(models.Account)
		if err := json.Unmarshal(entry.Value, acct); err != nil {
			log.WithFields(log.Fields{
				"key":   entry.Key.String(),
				"error": err,
			}).Warn("Discarding undecodable account")
			continue
		}
		accounts = append(accounts, acct)
	}
	return accounts
}

func sortAccountsByBalance(accounts []*models.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Balance != accounts[j].Balance {
			return accounts[i].Balance > accounts[j].Balance
		}
		return accounts[i].UserID < accounts[j].UserID
	})
}
