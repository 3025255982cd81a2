// Package fees manages fee heads and the per-grade fee structures of an
// academic year.
package fees

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/bursar/internal/ledgererr"
	"github.com/cleared-dev/bursar/internal/model"
	"github.com/cleared-dev/bursar/internal/validation"
)

const (
	headEntity      = "fee_head"
	structureEntity = "fee_structure"
)

var hundred = decimal.NewFromInt(100)

// AccountLookup is the part of the chart fee configuration reads.
type AccountLookup interface {
	Get(id string) (model.Account, bool)
	IsLeaf(id string) bool
}

// Data is the persisted fee configuration of a period.
type Data struct {
	Heads      []model.FeeHead           `yaml:"fee_heads"`
	Structures []model.GradeFeeStructure `yaml:"structures"`
}

// Service owns fee heads and grade fee structures. It is not safe for
// concurrent use.
type Service struct {
	heads      []model.FeeHead
	structures []model.GradeFeeStructure
	accounts   AccountLookup
	log        *zap.Logger
}

// NewService creates a Service over loaded fee configuration.
func NewService(data Data, accounts AccountLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		heads:      append([]model.FeeHead(nil), data.Heads...),
		structures: make([]model.GradeFeeStructure, 0, len(data.Structures)),
		accounts:   accounts,
		log:        logger,
	}
	for _, st := range data.Structures {
		s.structures = append(s.structures, cloneStructure(st))
	}
	return s
}

// Data returns a copy of the configuration for persistence.
func (s *Service) Data() Data {
	d := Data{Heads: s.Heads()}
	for _, st := range s.structures {
		d.Structures = append(d.Structures, cloneStructure(st))
	}
	return d
}

// HeadParams holds parameters for creating a fee head.
type HeadParams struct {
	ID        string
	Name      string        `yaml:"name" validate:"required,max=120"`
	AccountID string        `yaml:"account_id" validate:"required"`
	Type      model.FeeType `yaml:"type" validate:"omitempty,oneof=MANDATORY OPTIONAL"`
	Recurring bool
	Priority  int `yaml:"priority" validate:"gte=0"`
}

// AddFeeHead creates an ACTIVE fee head bound to a revenue leaf account.
func (s *Service) AddFeeHead(p HeadParams) (model.FeeHead, error) {
	if err := validation.Struct(headEntity, p); err != nil {
		return model.FeeHead{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, ok := s.Head(p.ID); ok {
		return model.FeeHead{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrDuplicateID.Code, headEntity, p.ID, "fee head already exists")
	}
	if err := s.checkRevenueLeaf(p.ID, p.AccountID); err != nil {
		return model.FeeHead{}, err
	}
	if p.Type == "" {
		p.Type = model.FeeTypeMandatory
	}

	h := model.FeeHead{
		ID:        p.ID,
		Name:      p.Name,
		AccountID: p.AccountID,
		Type:      p.Type,
		Recurring: p.Recurring,
		Priority:  p.Priority,
		State:     model.StateActive,
	}
	s.heads = append(s.heads, h)
	s.log.Info("fee head added", zap.String("fee_head_id", h.ID), zap.String("name", h.Name))
	return h, nil
}

// HeadPatch lists the fee head fields UpdateFeeHead may change.
type HeadPatch struct {
	Name      *string
	AccountID *string
	Type      *model.FeeType
	Recurring *bool
	Priority  *int
}

// UpdateFeeHead applies a patch to a fee head.
func (s *Service) UpdateFeeHead(id string, p HeadPatch) (model.FeeHead, error) {
	i, err := s.headIndex(id)
	if err != nil {
		return model.FeeHead{}, err
	}
	h := s.heads[i]
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return model.FeeHead{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, headEntity, id, "name is required")
		}
		h.Name = *p.Name
	}
	if p.AccountID != nil {
		if err := s.checkRevenueLeaf(id, *p.AccountID); err != nil {
			return model.FeeHead{}, err
		}
		h.AccountID = *p.AccountID
	}
	if p.Type != nil {
		if *p.Type != model.FeeTypeMandatory && *p.Type != model.FeeTypeOptional {
			return model.FeeHead{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, headEntity, id, "invalid fee type %q", *p.Type)
		}
		h.Type = *p.Type
	}
	if p.Recurring != nil {
		h.Recurring = *p.Recurring
	}
	if p.Priority != nil {
		if *p.Priority < 0 {
			return model.FeeHead{}, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, headEntity, id, "priority must be greater than or equal to 0")
		}
		h.Priority = *p.Priority
	}
	s.heads[i] = h
	return h, nil
}

// DisableFeeHead stops a fee head from being added to structures or billed.
func (s *Service) DisableFeeHead(id string) (model.FeeHead, error) {
	return s.transition(id, model.StateDisabled)
}

// EnableFeeHead reactivates a disabled fee head.
func (s *Service) EnableFeeHead(id string) (model.FeeHead, error) {
	return s.transition(id, model.StateActive)
}

func (s *Service) transition(id string, to model.State) (model.FeeHead, error) {
	i, err := s.headIndex(id)
	if err != nil {
		return model.FeeHead{}, err
	}
	from := s.heads[i].State
	if !model.CanTransition(from, to) {
		return model.FeeHead{}, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrInvalidTransition.Code, headEntity, id, "cannot move from %s to %s", from, to)
	}
	s.heads[i].State = to
	s.log.Info("fee head state changed", zap.String("fee_head_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	return s.heads[i], nil
}

// DeleteFeeHead removes a fee head no structure references.
func (s *Service) DeleteFeeHead(id string) error {
	i, err := s.headIndex(id)
	if err != nil {
		return err
	}
	for _, st := range s.structures {
		if _, ok := st.Item(id); ok {
			return ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrFeeHeadInUse.Code, headEntity, id, "referenced by the %s structure of %s", st.GradeID, st.YearID)
		}
	}
	s.heads = append(s.heads[:i], s.heads[i+1:]...)
	s.log.Info("fee head deleted", zap.String("fee_head_id", id))
	return nil
}

// Head returns a fee head by ID.
func (s *Service) Head(id string) (model.FeeHead, bool) {
	for _, h := range s.heads {
		if h.ID == id {
			return h, true
		}
	}
	return model.FeeHead{}, false
}

// Heads returns every fee head ordered by priority, then ID.
func (s *Service) Heads() []model.FeeHead {
	out := append([]model.FeeHead(nil), s.heads...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InitializeYearFees creates an empty structure for every grade that has
// none in yearID. Existing structures are never touched.
func (s *Service) InitializeYearFees(yearID string, grades []model.Grade) ([]model.GradeFeeStructure, error) {
	if strings.TrimSpace(yearID) == "" {
		return nil, ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, structureEntity, "", "year is required")
	}
	var created []model.GradeFeeStructure
	for _, g := range grades {
		if _, ok := s.Structure(yearID, g.ID); ok {
			continue
		}
		st := model.GradeFeeStructure{
			ID:      uuid.NewString(),
			YearID:  yearID,
			GradeID: g.ID,
			Total:   decimal.Zero,
		}
		s.structures = append(s.structures, st)
		created = append(created, st)
	}
	s.log.Info("year fees initialised", zap.String("year_id", yearID), zap.Int("created", len(created)))
	return created, nil
}

// AddGradeFeeItem adds a fee head's amount to a grade structure. Missing term
// percentages default to an even split.
func (s *Service) AddGradeFeeItem(yearID, gradeID string, item model.FeeItem) (model.GradeFeeStructure, error) {
	i, err := s.structureIndex(yearID, gradeID)
	if err != nil {
		return model.GradeFeeStructure{}, err
	}
	st := &s.structures[i]
	if _, dup := st.Item(item.FeeHeadID); dup {
		return model.GradeFeeStructure{}, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrDuplicateFeeHead.Code, structureEntity, st.ID, "fee head %s already in structure", item.FeeHeadID)
	}
	item, err = s.checkItem(st.ID, item)
	if err != nil {
		return model.GradeFeeStructure{}, err
	}

	st.Items = append(st.Items, item)
	st.Recalculate()
	s.log.Info("fee item added", zap.String("structure_id", st.ID), zap.String("fee_head_id", item.FeeHeadID))
	return cloneStructure(*st), nil
}

// UpdateGradeFeeItem replaces the item for item.FeeHeadID.
func (s *Service) UpdateGradeFeeItem(yearID, gradeID string, item model.FeeItem) (model.GradeFeeStructure, error) {
	i, err := s.structureIndex(yearID, gradeID)
	if err != nil {
		return model.GradeFeeStructure{}, err
	}
	st := &s.structures[i]
	pos := itemIndex(*st, item.FeeHeadID)
	if pos < 0 {
		return model.GradeFeeStructure{}, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, structureEntity, st.ID, "fee head %s not in structure", item.FeeHeadID)
	}
	item, err = s.checkItem(st.ID, item)
	if err != nil {
		return model.GradeFeeStructure{}, err
	}

	st.Items[pos] = item
	st.Recalculate()
	return cloneStructure(*st), nil
}

// RemoveGradeFeeItem drops a fee head from a grade structure.
func (s *Service) RemoveGradeFeeItem(yearID, gradeID, feeHeadID string) (model.GradeFeeStructure, error) {
	i, err := s.structureIndex(yearID, gradeID)
	if err != nil {
		return model.GradeFeeStructure{}, err
	}
	st := &s.structures[i]
	pos := itemIndex(*st, feeHeadID)
	if pos < 0 {
		return model.GradeFeeStructure{}, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, structureEntity, st.ID, "fee head %s not in structure", feeHeadID)
	}
	st.Items = append(st.Items[:pos], st.Items[pos+1:]...)
	st.Recalculate()
	return cloneStructure(*st), nil
}

// Structure returns the structure of a grade in a year.
func (s *Service) Structure(yearID, gradeID string) (model.GradeFeeStructure, bool) {
	for _, st := range s.structures {
		if st.YearID == yearID && st.GradeID == gradeID {
			return cloneStructure(st), true
		}
	}
	return model.GradeFeeStructure{}, false
}

// Structures returns every structure of a year ordered by grade.
func (s *Service) Structures(yearID string) []model.GradeFeeStructure {
	var out []model.GradeFeeStructure
	for _, st := range s.structures {
		if st.YearID == yearID {
			out = append(out, cloneStructure(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GradeID < out[j].GradeID })
	return out
}

// RevenueAccount returns the account an item's revenue is credited to: the
// item override, else the head's account.
func (s *Service) RevenueAccount(item model.FeeItem) string {
	if item.RevenueAccountID != "" {
		return item.RevenueAccountID
	}
	if h, ok := s.Head(item.FeeHeadID); ok {
		return h.AccountID
	}
	return ""
}

func (s *Service) checkItem(structureID string, item model.FeeItem) (model.FeeItem, error) {
	h, ok := s.Head(item.FeeHeadID)
	if !ok {
		return item, ledgererr.Newf(ledgererr.KindReferential, ledgererr.ErrUnknownFeeHead.Code, structureEntity, structureID, "unknown fee head %s", item.FeeHeadID)
	}
	if h.State != model.StateActive {
		return item, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrFeeHeadDisabled.Code, structureEntity, structureID, "fee head %s is %s", h.ID, h.State)
	}
	if !item.Amount.IsPositive() {
		return item, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAmount.Code, structureEntity, structureID, "amount must be positive, got %s", item.Amount)
	}
	if item.Term1Pct.IsZero() && item.Term2Pct.IsZero() {
		item.Term1Pct = decimal.NewFromInt(50)
		item.Term2Pct = decimal.NewFromInt(50)
	}
	if item.Term1Pct.IsNegative() || item.Term2Pct.IsNegative() || !item.Term1Pct.Add(item.Term2Pct).Equal(hundred) {
		return item, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidTermSplit.Code, structureEntity, structureID,
			"term split %s + %s must equal 100", item.Term1Pct, item.Term2Pct)
	}
	if item.RevenueAccountID != "" {
		if err := s.checkRevenueLeaf(structureID, item.RevenueAccountID); err != nil {
			return item, err
		}
	}
	if item.CostAccountID != "" {
		a, ok := s.accounts.Get(item.CostAccountID)
		if !ok || a.Type != model.AccountTypeExpense || !s.accounts.IsLeaf(a.ID) {
			return item, ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAccountReference.Code, structureEntity, structureID, "cost account %s must be an expense leaf", item.CostAccountID)
		}
	}
	return item, nil
}

func (s *Service) checkRevenueLeaf(entityID, accountID string) error {
	a, ok := s.accounts.Get(accountID)
	if !ok || a.Type != model.AccountTypeRevenue || !s.accounts.IsLeaf(accountID) {
		return ledgererr.Newf(ledgererr.KindValidation, ledgererr.ErrInvalidAccountReference.Code, headEntity, entityID, "account %s must be a revenue leaf", accountID)
	}
	return nil
}

func (s *Service) headIndex(id string) (int, error) {
	for i, h := range s.heads {
		if h.ID == id {
			return i, nil
		}
	}
	return 0, ledgererr.Newf(ledgererr.KindNotFound, ledgererr.ErrNotFound.Code, headEntity, id, "fee head %s not found", id)
}

func (s *Service) structureIndex(yearID, gradeID string) (int, error) {
	for i, st := range s.structures {
		if st.YearID == yearID && st.GradeID == gradeID {
			return i, nil
		}
	}
	return 0, ledgererr.Newf(ledgererr.KindStateConflict, ledgererr.ErrStructureNotSeeded.Code, structureEntity, "",
		"no structure for grade %s in %s; initialise the year first", gradeID, yearID)
}

func itemIndex(st model.GradeFeeStructure, feeHeadID string) int {
	for i, it := range st.Items {
		if it.FeeHeadID == feeHeadID {
			return i
		}
	}
	return -1
}

func cloneStructure(st model.GradeFeeStructure) model.GradeFeeStructure {
	st.Items = append([]model.FeeItem(nil), st.Items...)
	return st
}
