package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ledgerbank/internal/auth"
	"ledgerbank/internal/db"
	"ledgerbank/internal/ledger"
	"ledgerbank/internal/models"
	"ledgerbank/internal/money"
	"ledgerbank/internal/repository"
	"ledgerbank/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	listCacheKey            = "accounts:all"
	accountNumberAttempts   = 5
	constraintEmail         = "users_email_key"
	constraintAccountNumber = "users_account_number_key"
)

type AccountRepository interface {
	FindAll(ctx context.Context) ([]models.Account, error)
	FindByID(ctx context.Context, accountID string) (models.Account, error)
	FindByCredentials(ctx context.Context, email, password string) (models.Account, error)
	InsertTx(ctx context.Context, tx store.DB, account models.Account) (models.Account, error)
	LockByID(ctx context.Context, tx store.DB, accountID string) (models.Account, error)
	Resync(ctx context.Context, tx store.DB, account models.Account) error
	DeleteTx(ctx context.Context, tx store.DB, accountID string) (bool, error)
	EmailTaken(ctx context.Context, q store.DB, email, excludeID string) (bool, error)
	AccountNumberTaken(ctx context.Context, q store.DB, accountNumber string) (bool, error)
	HasAdmin(ctx context.Context) (bool, error)
	MarkOverdueCredits(ctx context.Context, asOf time.Time) ([]string, error)
}

type ListCache interface {
	Get(ctx context.Context, key string) ([]models.Account, bool)
	Set(ctx context.Context, key string, value []models.Account)
	Delete(ctx context.Context, key string)
}

type BalanceHub interface {
	BroadcastBalance(accountID string, balance decimal.Decimal)
}

type AccountService struct {
	txRunner db.TxRunner
	repo     AccountRepository
	cache    ListCache
	hub      BalanceHub
	logger   logrus.FieldLogger
	now      func() time.Time

	// listMu orders list cache fills against invalidations. listGen moves on
	// every write so a fill that raced one is dropped.
	listMu  sync.Mutex
	listGen uint64
}

func NewAccountService(txRunner db.TxRunner, repo AccountRepository, cache ListCache, hub BalanceHub, logger logrus.FieldLogger) *AccountService {
	return &AccountService{
		txRunner: txRunner,
		repo:     repo,
		cache:    cache,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
	}
}

// Profile is the input for a new account. An empty AccountNumber asks the
// service to generate one.
type Profile struct {
	AccountNumber string
	FullName      string
	Email         string
	Password      string
	Role          models.Role
	Balance       decimal.Decimal
}

// ProfileChanges lists the fields EditProfile may overwrite. Nil fields keep
// their stored value.
type ProfileChanges struct {
	AccountNumber *string
	FullName      *string
	Email         *string
	Password      *string
	Role          *models.Role
	Balance       *decimal.Decimal
}

func (s *AccountService) Authenticate(ctx context.Context, email, password string) (models.Account, error) {
	account, err := s.repo.FindByCredentials(ctx, strings.TrimSpace(email), password)
	if errors.Is(err, repository.ErrInvalidCredentials) {
		return models.Account{}, newError(KindAuthentication, ReasonInvalidCredentials, nil)
	}
	if err != nil {
		return models.Account{}, s.translate("authenticate", "", err)
	}
	account.SortMovements()
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if cached, ok := s.cache.Get(ctx, listCacheKey); ok {
		return cached, nil
	}
	s.listMu.Lock()
	gen := s.listGen
	s.listMu.Unlock()

	accounts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, s.translate("list_accounts", "", err)
	}
	for i := range accounts {
		accounts[i].SortMovements()
	}

	s.listMu.Lock()
	if s.listGen == gen {
		s.cache.Set(ctx, listCacheKey, accounts)
	}
	s.listMu.Unlock()
	return accounts, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if err := checkAccountID(accountID); err != nil {
		return models.Account{}, err
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return models.Account{}, s.translate("get_account", accountID, err)
	}
	account.SortMovements()
	return account, nil
}

// CreateAccount rejects a taken email before writing anything.
func (s *AccountService) CreateAccount(ctx context.Context, profile Profile) (models.Account, error) {
	account, err := s.newAccount(profile)
	if err != nil {
		return models.Account{}, err
	}
	var created models.Account
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		taken, err := s.repo.EmailTaken(ctx, tx, account.Email, "")
		if err != nil {
			return err
		}
		if taken {
			return newError(KindBusinessRule, ReasonDuplicateEmail, nil)
		}
		if account.AccountNumber == "" {
			number, err := s.freeAccountNumber(ctx, tx)
			if err != nil {
				return err
			}
			account.AccountNumber = number
		} else {
			taken, err := s.repo.AccountNumberTaken(ctx, tx, account.AccountNumber)
			if err != nil {
				return err
			}
			if taken {
				return newError(KindBusinessRule, ReasonDuplicateAccountNumber, nil)
			}
		}
		created, err = s.repo.InsertTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return models.Account{}, s.translate("create_account", "", err)
	}
	s.afterWrite(ctx, created)
	created.SortMovements()
	return created, nil
}

func (s *AccountService) RecordMovement(ctx context.Context, accountID string, movementType models.MovementType, amount decimal.Decimal, description string) (models.Account, error) {
	return s.mutate(ctx, "record_movement", accountID, func(account models.Account) (models.Account, error) {
		return ledger.ApplyMovement(account, movementType, amount, description, s.now())
	})
}

func (s *AccountService) AssignCredit(ctx context.Context, accountID string, amount, limit, interestRate decimal.Decimal, dueDate *time.Time) (models.Account, error) {
	return s.mutate(ctx, "assign_credit", accountID, func(account models.Account) (models.Account, error) {
		return ledger.AssignCredit(account, amount, limit, interestRate, dueDate, s.now())
	})
}

func (s *AccountService) AssignLoan(ctx context.Context, accountID string, amount, interestRate decimal.Decimal, termMonths int) (models.Account, error) {
	return s.mutate(ctx, "assign_loan", accountID, func(account models.Account) (models.Account, error) {
		return ledger.AssignLoan(account, amount, interestRate, termMonths, s.now())
	})
}

// EditProfile overwrites the given scalar fields. A balance override is
// stored as given even when it no longer matches the movement history.
func (s *AccountService) EditProfile(ctx context.Context, accountID string, changes ProfileChanges) (models.Account, error) {
	var passwordHash string
	if changes.Password != nil && *changes.Password != "" {
		hash, err := auth.HashPassword(*changes.Password)
		if err != nil {
			return models.Account{}, s.translate("edit_profile", accountID, err)
		}
		passwordHash = hash
	}
	return s.mutateTx(ctx, "edit_profile", accountID, func(tx store.DB, account models.Account) (models.Account, error) {
		updated := account.Clone()
		if changes.FullName != nil {
			updated.FullName = strings.TrimSpace(*changes.FullName)
		}
		if changes.Email != nil {
			updated.Email = strings.TrimSpace(*changes.Email)
			if !strings.EqualFold(updated.Email, account.Email) {
				taken, err := s.repo.EmailTaken(ctx, tx, updated.Email, account.ID)
				if err != nil {
					return models.Account{}, err
				}
				if taken {
					return models.Account{}, newError(KindBusinessRule, ReasonDuplicateEmail, nil)
				}
			}
		}
		if changes.AccountNumber != nil && *changes.AccountNumber != account.AccountNumber {
			taken, err := s.repo.AccountNumberTaken(ctx, tx, *changes.AccountNumber)
			if err != nil {
				return models.Account{}, err
			}
			if taken {
				return models.Account{}, newError(KindBusinessRule, ReasonDuplicateAccountNumber, nil)
			}
			updated.AccountNumber = *changes.AccountNumber
		}
		if changes.Role != nil {
			if !changes.Role.Valid() {
				return models.Account{}, newError(KindValidation, ReasonInvalidAccount, ledger.ErrInvalidAccount)
			}
			updated.Role = *changes.Role
		}
		if changes.Balance != nil {
			if err := money.CheckNonNegative(*changes.Balance); err != nil {
				return models.Account{}, newError(KindValidation, ReasonInvalidAmount, err)
			}
			updated.Balance = *changes.Balance
			if ledgerBalance := updated.LedgerBalance(); !updated.Balance.Equal(ledgerBalance) {
				s.logger.WithFields(logrus.Fields{
					"account_id":     account.ID,
					"operation":      "edit_profile",
					"balance":        money.Format(updated.Balance),
					"ledger_balance": money.Format(ledgerBalance),
				}).Warn("balance overridden without a movement")
			}
		}
		updated.PasswordHash = passwordHash
		return updated, nil
	})
}

// ReplaceAccount overwrites the whole aggregate, children included. The
// stored password is kept when password is empty.
func (s *AccountService) ReplaceAccount(ctx context.Context, accountID string, replacement models.Account, password string) (models.Account, error) {
	replacement.ID = accountID
	replacement.Email = strings.TrimSpace(replacement.Email)
	replacement.FullName = strings.TrimSpace(replacement.FullName)
	if replacement.Email == "" || replacement.FullName == "" || replacement.AccountNumber == "" {
		return models.Account{}, newError(KindValidation, ReasonInvalidAccount, ledger.ErrInvalidAccount)
	}
	if err := ledger.Validate(replacement); err != nil {
		return models.Account{}, s.translate("replace_account", accountID, err)
	}
	replacement.PasswordHash = ""
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return models.Account{}, s.translate("replace_account", accountID, err)
		}
		replacement.PasswordHash = hash
	}
	return s.mutateTx(ctx, "replace_account", accountID, func(tx store.DB, current models.Account) (models.Account, error) {
		if !strings.EqualFold(replacement.Email, current.Email) {
			taken, err := s.repo.EmailTaken(ctx, tx, replacement.Email, accountID)
			if err != nil {
				return models.Account{}, err
			}
			if taken {
				return models.Account{}, newError(KindBusinessRule, ReasonDuplicateEmail, nil)
			}
		}
		if replacement.AccountNumber != current.AccountNumber {
			taken, err := s.repo.AccountNumberTaken(ctx, tx, replacement.AccountNumber)
			if err != nil {
				return models.Account{}, err
			}
			if taken {
				return models.Account{}, newError(KindBusinessRule, ReasonDuplicateAccountNumber, nil)
			}
		}
		next := replacement.Clone()
		next.CreatedAt = current.CreatedAt
		keepChildCreatedAt(&next, current)
		return next, nil
	})
}

func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}
	var removed bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		removed, err = s.repo.DeleteTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return s.translate("delete_account", accountID, err)
	}
	if !removed {
		return newError(KindNotFound, ReasonAccountNotFound, repository.ErrNotFound)
	}
	s.invalidateList(ctx)
	return nil
}

// EnsureAdmin creates an administrator when no account holds the admin role
// yet. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	exists, err := s.repo.HasAdmin(ctx)
	if err != nil {
		return false, s.translate("ensure_admin", "", err)
	}
	if exists {
		return false, nil
	}
	_, err = s.CreateAccount(ctx, Profile{
		FullName: fullName,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkOverdueCredits flips every active credit past its due date to overdue
// and returns how many accounts were touched.
func (s *AccountService) MarkOverdueCredits(ctx context.Context) (int, error) {
	ids, err := s.repo.MarkOverdueCredits(ctx, s.now().UTC())
	if err != nil {
		return 0, s.translate("mark_overdue_credits", "", err)
	}
	if len(ids) > 0 {
		s.invalidateList(ctx)
	}
	return len(ids), nil
}

func (s *AccountService) mutate(ctx context.Context, operation, accountID string, apply func(models.Account) (models.Account, error)) (models.Account, error) {
	return s.mutateTx(ctx, operation, accountID, func(_ store.DB, account models.Account) (models.Account, error) {
		return apply(account)
	})
}

// mutateTx locks the account, applies fn and resyncs the result, all in one
// transaction. Nothing is written when fn fails.
func (s *AccountService) mutateTx(ctx context.Context, operation, accountID string, fn func(tx store.DB, account models.Account) (models.Account, error)) (models.Account, error) {
	if err := checkAccountID(accountID); err != nil {
		return models.Account{}, err
	}
	var updated models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.repo.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		next, err := fn(tx, account)
		if err != nil {
			return err
		}
		if err := s.repo.Resync(ctx, tx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.Account{}, s.translate(operation, accountID, err)
	}
	s.afterWrite(ctx, updated)
	updated.PasswordHash = ""
	updated.SortMovements()
	return updated, nil
}

func (s *AccountService) newAccount(profile Profile) (models.Account, error) {
	fullName := strings.TrimSpace(profile.FullName)
	email := strings.TrimSpace(profile.Email)
	if fullName == "" || email == "" {
		return models.Account{}, newError(KindValidation, ReasonInvalidAccount, ledger.ErrInvalidAccount)
	}
	role := profile.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.Account{}, newError(KindValidation, ReasonInvalidAccount, ledger.ErrInvalidAccount)
	}
	if err := money.CheckNonNegative(profile.Balance); err != nil {
		return models.Account{}, newError(KindValidation, ReasonInvalidAmount, err)
	}
	var hash string
	if profile.Password != "" {
		var err error
		hash, err = auth.HashPassword(profile.Password)
		if err != nil {
			return models.Account{}, s.translate("create_account", "", err)
		}
	}
	return models.Account{
		AccountNumber: strings.TrimSpace(profile.AccountNumber),
		FullName:      fullName,
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Balance:       profile.Balance,
	}, nil
}

func (s *AccountService) freeAccountNumber(ctx context.Context, tx store.DB) (string, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := ledger.GenerateAccountNumber()
		if err != nil {
			return "", err
		}
		taken, err := s.repo.AccountNumberTaken(ctx, tx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", newError(KindBusinessRule, ReasonDuplicateAccountNumber, errors.New("no free account number"))
}

func (s *AccountService) afterWrite(ctx context.Context, account models.Account) {
	s.invalidateList(ctx)
	s.hub.BroadcastBalance(account.ID, account.Balance)
}

func (s *AccountService) invalidateList(ctx context.Context) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.listGen++
	s.cache.Delete(ctx, listCacheKey)
}

// checkAccountID reports ids that cannot name a stored account as not found.
func checkAccountID(accountID string) error {
	if _, err := uuid.Parse(accountID); err != nil {
		return newError(KindNotFound, ReasonAccountNotFound, repository.ErrNotFound)
	}
	return nil
}

// keepChildCreatedAt carries the stored creation time of every credit and
// loan that next keeps by id.
func keepChildCreatedAt(next *models.Account, current models.Account) {
	created := make(map[string]time.Time, len(current.Credits)+len(current.Loans))
	for _, c := range current.Credits {
		created[c.ID] = c.CreatedAt
	}
	for _, l := range current.Loans {
		created[l.ID] = l.CreatedAt
	}
	for i := range next.Credits {
		if at, ok := created[next.Credits[i].ID]; ok {
			next.Credits[i].CreatedAt = at
		}
	}
	for i := range next.Loans {
		if at, ok := created[next.Loans[i].ID]; ok {
			next.Loans[i].CreatedAt = at
		}
	}
}

// translate maps repository, ledger and driver errors onto the service
// taxonomy. Storage failures are logged here with their cause and leave the
// service as a generic storage error.
func (s *AccountService) translate(operation, accountID string, err error) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindNotFound, ReasonAccountNotFound, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return newError(KindBusinessRule, ReasonInsufficientFunds, err)
	case errors.Is(err, ledger.ErrInvalidCredit):
		return newError(KindBusinessRule, ReasonInvalidCredit, err)
	case errors.Is(err, ledger.ErrInvalidLoan):
		return newError(KindBusinessRule, ReasonInvalidLoan, err)
	case errors.Is(err, ledger.ErrInvalidAmount):
		return newError(KindValidation, ReasonInvalidAmount, err)
	case errors.Is(err, ledger.ErrInvalidMovementType):
		return newError(KindValidation, ReasonInvalidMovementType, err)
	case errors.Is(err, ledger.ErrInvalidAccount):
		return newError(KindValidation, ReasonInvalidAccount, err)
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case constraintEmail:
			return newError(KindBusinessRule, ReasonDuplicateEmail, err)
		case constraintAccountNumber:
			return newError(KindBusinessRule, ReasonDuplicateAccountNumber, err)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"account_id": accountID,
	}).WithError(err).Error("storage failure")
	return newError(KindStorage, ReasonStorageFailure, err)
}
