package accounts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
)

const entity = "account"

// Transaction is a signed balance delta; positive increases the debit side.
type Transaction struct {
	AccountID string
	Amount    decimal.Decimal
}

// Service owns the chart of accounts of one period. It is not safe for
// concurrent use; callers serialise access.
type Service struct {
	accounts []model.Account
	index    map[string]int // id -> position in accounts
	log      *zap.Logger
}

// NewService creates a Service from a slice of accounts. Duplicates are
// resolved with Dedupe.
func NewService(accounts []model.Account, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept, dropped := Dedupe(accounts)
	for _, d := range dropped {
		logger.Debug("dropped duplicate account", zap.String("account_id", d.ID), zap.String("code", d.Code))
	}
	s := &Service{accounts: kept, log: logger}
	s.reindex()
	return s
}

func (s *Service) reindex() {
	s.index = make(map[string]int, len(s.accounts))
	for i, a := range s.accounts {
		s.index[a.ID] = i
	}
}

// All returns a copy of every account in chart order.
func (s *Service) All() []model.Account {
	return append([]model.Account(nil), s.accounts...)
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Account{}, false
	}
	return s.accounts[i], true
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.index[id]
	return ok
}

// GetByCode returns the account with the given code.
func (s *Service) GetByCode(code string) (model.Account, bool) {
	for _, a := range s.accounts {
		if a.Code == code {
			return a, true
		}
	}
	return model.Account{}, false
}

// GetBySystemTag returns the account carrying a system tag.
func (s *Service) GetBySystemTag(tag model.SystemTag) (model.Account, bool) {
	if tag == "" {
		return model.Account{}, false
	}
	for _, a := range s.accounts {
		if a.SystemTag == tag {
			return a, true
		}
	}
	return model.Account{}, false
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Children returns the direct children of parentID ordered by code. An empty
// parentID returns the roots.
func (s *Service) Children(parentID string) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.ParentID == parentID {
			result = append(result, a)
		}
	}
	sortByCode(result)
	return result
}

// Roots returns the top-level accounts ordered by code.
func (s *Service) Roots() []model.Account {
	return s.Children("")
}

// IsLeaf reports whether id is a postable account: it exists, is not an
// aggregation node and has no children.
func (s *Service) IsLeaf(id string) bool {
	a, ok := s.Get(id)
	if !ok || a.IsMain {
		return false
	}
	return !s.hasChildren(id)
}

// Tree returns every account in depth-first order, children sorted by code.
func (s *Service) Tree() []model.Account {
	out := make([]model.Account, 0, len(s.accounts))
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, a := range s.Children(parentID) {
			out = append(out, a)
			walk(a.ID)
		}
	}
	walk("")
	return out
}

// Add inserts a new account. The balance always starts at zero; the level is
// derived from the parent.
func (s *Service) Add(acct model.Account) (model.Account, error) {
	if strings.TrimSpace(acct.Name) == "" {
		return model.Account{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, acct.ID, "name is required")
	}
	if !acct.Type.IsValid() {
		return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, acct.ID, "invalid account type %q", acct.Type)
	}
	if !validCode(acct.Code) {
		return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidCode.Code, entity, acct.ID, "code %q must be digits only", acct.Code)
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	} else if s.Exists(acct.ID) {
		return model.Account{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrDuplicateID.Code, entity, acct.ID, "account ID already exists")
	}
	if other, ok := s.GetByCode(acct.Code); ok {
		return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrDuplicateCode.Code, entity, acct.ID, "code %s already used by %s", acct.Code, other.ID)
	}

	acct.Level = 1
	if acct.ParentID != "" {
		parent, ok := s.Get(acct.ParentID)
		if !ok {
			return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrMissingParent.Code, entity, acct.ID, "parent %s does not exist", acct.ParentID)
		}
		if parent.Type != acct.Type {
			return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrTypeMismatch.Code, entity, acct.ID, "type %s differs from parent type %s", acct.Type, parent.Type)
		}
		if !parent.Balance.IsZero() && !s.hasChildren(parent.ID) {
			return model.Account{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrHasBalance.Code, entity, parent.ID, "parent %s carries a balance of %s", parent.Code, parent.Balance.StringFixed(2))
		}
		acct.Level = parent.Level + 1
		s.accounts[s.index[parent.ID]].IsMain = true
	}
	acct.Balance = decimal.Zero

	s.accounts = append(s.accounts, acct)
	s.index[acct.ID] = len(s.accounts) - 1
	s.log.Info("account added", zap.String("account_id", acct.ID), zap.String("code", acct.Code))
	return acct, nil
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	Name        *string
	Code        *string
	ParentID    *string
	Type        *model.AccountType
	IsMain      *bool
	Description *string
}

// Update applies a patch to an account.
func (s *Service) Update(id string, p Patch) (model.Account, error) {
	i, ok := s.index[id]
	if !ok {
		return model.Account{}, notFound(id)
	}
	cur := s.accounts[i]
	next := cur

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return model.Account{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, id, "name is required")
		}
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Code != nil {
		next.Code = *p.Code
	}
	if p.ParentID != nil {
		next.ParentID = *p.ParentID
	}
	if p.Type != nil {
		next.Type = *p.Type
	}
	if p.IsMain != nil {
		next.IsMain = *p.IsMain
	}

	structural := next.Code != cur.Code || next.ParentID != cur.ParentID || next.Type != cur.Type
	if structural && cur.Locked {
		return model.Account{}, ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrAccountLocked.Code, entity, id, "code, parent and type of a locked account are immutable")
	}

	if next.Code != cur.Code {
		if !validCode(next.Code) {
			return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidCode.Code, entity, id, "code %q must be digits only", next.Code)
		}
		if other, ok := s.GetByCode(next.Code); ok && other.ID != id {
			return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrDuplicateCode.Code, entity, id, "code %s already used by %s", next.Code, other.ID)
		}
	}
	if next.Type != cur.Type {
		if !next.Type.IsValid() {
			return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, id, "invalid account type %q", next.Type)
		}
		if s.hasChildren(id) {
			return model.Account{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrTypeMismatch.Code, entity, id, "cannot change the type of an account with children")
		}
	}
	if !next.IsMain && cur.IsMain && s.hasChildren(id) {
		return model.Account{}, ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrHasChildren.Code, entity, id, "an account with children must stay an aggregation node")
	}

	newLevel := cur.Level
	if next.ParentID != cur.ParentID || next.Type != cur.Type {
		if next.ParentID == "" {
			newLevel = 1
		} else {
			parent, ok := s.Get(next.ParentID)
			if !ok {
				return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrMissingParent.Code, entity, id, "parent %s does not exist", next.ParentID)
			}
			if s.isDescendant(next.ParentID, id) {
				return model.Account{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidParent.Code, entity, id, "an account cannot be moved under itself")
			}
			if parent.Type != next.Type {
				return model.Account{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrTypeMismatch.Code, entity, id, "type %s differs from parent type %s", next.Type, parent.Type)
			}
			newLevel = parent.Level + 1
		}
	}

	next.Level = newLevel
	s.accounts[i] = next
	if next.ParentID != "" && next.ParentID != cur.ParentID {
		s.accounts[s.index[next.ParentID]].IsMain = true
	}
	if newLevel != cur.Level {
		s.relevel(id)
	}
	s.log.Info("account updated", zap.String("account_id", id), zap.Bool("structural", structural))
	return next, nil
}

// Delete removes an account. Accounts with children, a balance, a lock or a
// system tag are never removed.
func (s *Service) Delete(id string) error {
	a, ok := s.Get(id)
	if !ok {
		return notFound(id)
	}
	if s.hasChildren(id) {
		return ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrHasChildren.Code, entity, id, "account has children")
	}
	if a.Locked || a.IsSystem {
		return ledgererr.New(ledgererr.KindStateConflict, ledgererr.ErrAccountLocked.Code, entity, id, "locked and system accounts cannot be deleted")
	}
	if !a.Balance.IsZero() {
		return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrHasBalance.Code, entity, id, "balance is %s", a.Balance.StringFixed(2))
	}

	i := s.index[id]
	s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
	s.reindex()
	s.log.Info("account deleted", zap.String("account_id", id), zap.String("code", a.Code))
	return nil
}

// Lock makes the account's code, parent and type immutable.
func (s *Service) Lock(id string) error {
	i, ok := s.index[id]
	if !ok {
		return notFound(id)
	}
	s.accounts[i].Locked = true
	return nil
}

// NextCode returns the next free code under parentID: the parent code plus a
// two-digit suffix starting at 01. At root level it is the next integer
// after the largest root code.
func (s *Service) NextCode(parentID string) (string, error) {
	if parentID == "" {
		maxCode := 0
		for _, a := range s.Roots() {
			n, err := strconv.Atoi(a.Code)
			if err == nil && n > maxCode {
				maxCode = n
			}
		}
		return strconv.Itoa(maxCode + 1), nil
	}

	parent, ok := s.Get(parentID)
	if !ok {
		return "", ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrMissingParent.Code, entity, parentID, "parent %s does not exist", parentID)
	}
	maxSuffix := 0
	for _, a := range s.accounts {
		if !strings.HasPrefix(a.Code, parent.Code) || len(a.Code) != len(parent.Code)+2 {
			continue
		}
		n, err := strconv.Atoi(a.Code[len(parent.Code):])
		if err == nil && n > maxSuffix {
			maxSuffix = n
		}
	}
	if maxSuffix >= 99 {
		return "", ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrCodeExhausted.Code, entity, parentID, "no free two-digit code under %s", parent.Code)
	}
	return fmt.Sprintf("%s%02d", parent.Code, maxSuffix+1), nil
}

// EnsureParams describes an account that must exist.
type EnsureParams struct {
	Name      string
	Type      model.AccountType
	ParentID  string
	SystemTag model.SystemTag
}

// CreateIfNotExists resolves an account by system tag, then by (name, type),
// and creates it when neither matches. Without a parent it is placed under
// the first root account of the same type. Returns the account ID and
// whether it was created.
func (s *Service) CreateIfNotExists(p EnsureParams) (string, bool, error) {
	if id, ok := s.resolve(p); ok {
		if p.SystemTag != "" {
			i := s.index[id]
			if s.accounts[i].SystemTag == "" {
				s.accounts[i].SystemTag = p.SystemTag
				s.accounts[i].IsSystem = true
			}
		}
		return id, false, nil
	}

	parentID, err := s.provisionParent(p)
	if err != nil {
		return "", false, err
	}
	code, err := s.NextCode(parentID)
	if err != nil {
		return "", false, err
	}
	acct, err := s.Add(model.Account{
		Code:      code,
		Name:      p.Name,
		Type:      p.Type,
		ParentID:  parentID,
		IsSystem:  p.SystemTag != "",
		SystemTag: p.SystemTag,
	})
	if err != nil {
		return "", false, err
	}
	s.log.Info("account provisioned", zap.String("account_id", acct.ID), zap.String("system_tag", string(p.SystemTag)))
	return acct.ID, true, nil
}

// CanProvision reports, without mutating anything, whether
// EnsureSystemAccount would succeed for tag.
func (s *Service) CanProvision(tag model.SystemTag) error {
	return s.canCreate(SystemAccountParams(tag))
}

func (s *Service) canCreate(p EnsureParams) error {
	if _, ok := s.resolve(p); ok {
		return nil
	}
	parentID, err := s.provisionParent(p)
	if err != nil {
		return err
	}
	_, err = s.NextCode(parentID)
	return err
}

// SystemAccountParams returns the canonical name and type for a system tag.
func SystemAccountParams(tag model.SystemTag) EnsureParams {
	p := EnsureParams{SystemTag: tag}
	switch tag {
	case model.TagOpeningBalance:
		p.Name, p.Type = "Opening Balance", model.AccountTypeEquity
	case model.TagStudentAR:
		p.Name, p.Type = "Student Receivables", model.AccountTypeAsset
	case model.TagDeferredRevenue:
		p.Name, p.Type = "Deferred Revenue", model.AccountTypeLiability
	case model.TagCurrentYearPnL:
		p.Name, p.Type = "Current Year P&L", model.AccountTypeEquity
	case model.TagRetainedEarnings:
		p.Name, p.Type = "Retained Earnings", model.AccountTypeEquity
	default:
		p.Name, p.Type = string(tag), model.AccountTypeEquity
	}
	return p
}

// EnsureSystemAccount resolves or creates the account carrying tag.
func (s *Service) EnsureSystemAccount(tag model.SystemTag) (string, error) {
	id, _, err := s.CreateIfNotExists(SystemAccountParams(tag))
	if err != nil {
		return "", ledgererr.Wrap(err, ledgererr.KindReferential, ledgererr.ErrMissingAccount.Code, entity, "", fmt.Sprintf("cannot provision %s", tag))
	}
	return id, nil
}

// PostTransactions applies signed deltas to running balances in one pass.
// Every account is checked before any balance changes.
func (s *Service) PostTransactions(txns []Transaction) error {
	for _, t := range txns {
		if !s.Exists(t.AccountID) {
			return ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownAccount.Code, entity, t.AccountID, "unknown account %s", t.AccountID)
		}
	}
	for _, t := range txns {
		i := s.index[t.AccountID]
		s.accounts[i].Balance = s.accounts[i].Balance.Add(t.Amount)
	}
	return nil
}

// ZeroBalances returns a copy of the chart with every balance cleared.
func (s *Service) ZeroBalances() []model.Account {
	out := s.All()
	for i := range out {
		out[i].Balance = decimal.Zero
	}
	return out
}

func (s *Service) resolve(p EnsureParams) (string, bool) {
	if a, ok := s.GetBySystemTag(p.SystemTag); ok {
		return a.ID, true
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Name, p.Name) && a.Type == p.Type {
			return a.ID, true
		}
	}
	return "", false
}

func (s *Service) provisionParent(p EnsureParams) (string, error) {
	if p.ParentID != "" {
		if !s.Exists(p.ParentID) {
			return "", ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrMissingParent.Code, entity, "", "parent %s does not exist", p.ParentID)
		}
		return p.ParentID, nil
	}
	for _, r := range s.Roots() {
		if r.Type == p.Type && (r.IsMain || r.Balance.IsZero()) {
			return r.ID, nil
		}
	}
	return "", nil
}

func (s *Service) hasChildren(id string) bool {
	for _, a := range s.accounts {
		if a.ParentID == id {
			return true
		}
	}
	return false
}

// isDescendant reports whether candidate is ancestor itself or sits below it.
func (s *Service) isDescendant(candidate, ancestor string) bool {
	seen := make(map[string]bool)
	for cur := candidate; cur != "" && !seen[cur]; {
		if cur == ancestor {
			return true
		}
		seen[cur] = true
		a, ok := s.Get(cur)
		if !ok {
			return false
		}
		cur = a.ParentID
	}
	return false
}

func (s *Service) relevel(id string) {
	parent, _ := s.Get(id)
	for i, a := range s.accounts {
		if a.ParentID == id {
			s.accounts[i].Level = parent.Level + 1
			s.relevel(a.ID)
		}
	}
}

func notFound(id string) error {
	return ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, entity, id, "account %s not found", id)
}

func validCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortByCode(accts []model.Account) {
	sort.SliceStable(accts, func(i, j int) bool {
		return compareCodes(accts[i].Code, accts[j].Code) < 0
	})
}

// compareCodes orders codes numerically when both parse, lexically otherwise.
func compareCodes(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
