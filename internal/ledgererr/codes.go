package ledgererr

// Sentinels for errors.Is. Only Code is compared.
var (
	ErrInvalidInput  = New(KindValidation, "INVALID_INPUT", "", "", "")
	ErrDuplicateCode = New(KindValidation, "DUPLICATE_CODE", "", "", "")
	ErrDuplicateID   = New(KindValidation, "DUPLICATE_ID", "", "", "")
	ErrMissingParent = New(KindValidation, "MISSING_PARENT", "", "", "")
	ErrInvalidParent = New(KindValidation, "INVALID_PARENT", "", "", "")
	ErrInvalidCode   = New(KindValidation, "INVALID_CODE", "", "", "")
	ErrTypeMismatch  = New(KindValidation, "TYPE_MISMATCH", "", "", "")
	ErrCodeExhausted = New(KindValidation, "CODE_SPACE_EXHAUSTED", "", "", "")
	ErrInvalidAmount = New(KindValidation, "INVALID_AMOUNT", "", "", "")
	ErrEmptyEntry    = New(KindValidation, "EMPTY_ENTRY", "", "", "")
	ErrInvalidSource = New(KindValidation, "INVALID_SOURCE", "", "", "")

	ErrInvalidAccountReference = New(KindValidation, "INVALID_ACCOUNT_REFERENCE", "", "", "")
	ErrDuplicateFeeHead        = New(KindValidation, "DUPLICATE_FEE_HEAD", "", "", "")
	ErrInvalidTermSplit        = New(KindValidation, "INVALID_TERM_SPLIT", "", "", "")

	ErrNotFound = New(KindNotFound, "NOT_FOUND", "", "", "")

	ErrHasChildren        = New(KindStateConflict, "HAS_CHILDREN", "", "", "")
	ErrHasBalance         = New(KindStateConflict, "HAS_BALANCE", "", "", "")
	ErrAccountLocked      = New(KindStateConflict, "ACCOUNT_LOCKED", "", "", "")
	ErrCannotEditNonDraft = New(KindStateConflict, "CANNOT_EDIT_NON_DRAFT", "", "", "")
	ErrNotDraft           = New(KindStateConflict, "NOT_DRAFT", "", "", "")
	ErrNotPosted          = New(KindStateConflict, "NOT_POSTED", "", "", "")
	ErrNotApproved        = New(KindStateConflict, "NOT_APPROVED", "", "", "")
	ErrUnbalanced         = New(KindStateConflict, "UNBALANCED", "", "", "")
	ErrAlreadyVoided      = New(KindStateConflict, "ALREADY_VOIDED", "", "", "")
	ErrInvalidTransition  = New(KindStateConflict, "INVALID_TRANSITION", "", "", "")
	ErrFeeHeadInUse       = New(KindStateConflict, "FEE_HEAD_IN_USE", "", "", "")
	ErrFeeHeadDisabled    = New(KindStateConflict, "FEE_HEAD_DISABLED", "", "", "")
	ErrCloseNotReady      = New(KindStateConflict, "CLOSE_NOT_READY", "", "", "")
	ErrReissueIncomplete  = New(KindStateConflict, "REISSUE_INCOMPLETE", "", "", "")
	ErrStructureNotSeeded = New(KindStateConflict, "STRUCTURE_NOT_SEEDED", "", "", "")
	ErrNothingToInvoice   = New(KindStateConflict, "NOTHING_TO_INVOICE", "", "", "")

	ErrUnknownAccount = New(KindReferential, "UNKNOWN_ACCOUNT", "", "", "")
	ErrMissingAccount = New(KindReferential, "MISSING_ACCOUNT", "", "", "")
	ErrUnknownFeeHead = New(KindReferential, "UNKNOWN_FEE_HEAD", "", "", "")
	ErrUnknownStudent = New(KindReferential, "UNKNOWN_STUDENT", "", "", "")

	ErrNoDeletion   = New(KindIrrecoverable, "NO_DELETION", "", "", "")
	ErrPeriodClosed = New(KindIrrecoverable, "PERIOD_CLOSED", "", "", "")
)
