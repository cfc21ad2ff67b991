package dashboard

import (
	"context"

	"go.uber.org/zap"

	"ecmdash/internal/cases"
	"ecmdash/internal/identity"
	"ecmdash/internal/logging"
)

type CaseWriter interface {
	CreateCase(ctx context.Context, d cases.Draft) error
	UpdateCase(ctx context.Context, id int64, d cases.Detail) error
}

type IdentitySource interface {
	Identity(ctx context.Context) identity.Identity
}

// CaseForm owns the create and edit drafts for the case screen.
type CaseForm struct {
	api CaseWriter
	rec *Reconciler
	who IdentitySource
	log *zap.Logger

	// ConfirmAfterSave re-fetches the case after a successful edit instead
	// of showing the submitted draft.
	ConfirmAfterSave bool

	createOpen bool
	draft      cases.Draft
	editing    bool
	edit       cases.Detail
}

func NewCaseForm(api CaseWriter, rec *Reconciler, who IdentitySource, log *zap.Logger) *CaseForm {
	return &CaseForm{api: api, rec: rec, who: who, log: logging.OrNop(log), draft: cases.NewDraft()}
}

// CanManage reports whether the create and edit controls are offered.
func (f *CaseForm) CanManage(ctx context.Context) bool {
	return f.who.Identity(ctx).CanManageCases()
}

// OpenCreate shows the create form with a fresh draft.
func (f *CaseForm) OpenCreate(ctx context.Context) error {
	if !f.CanManage(ctx) {
		return ErrForbidden
	}
	f.draft = cases.NewDraft()
	f.createOpen = true
	return nil
}

func (f *CaseForm) CreateOpen() bool { return f.createOpen }

// CreateDraft is the draft being filled in. Edits through the pointer are
// kept until submit succeeds or the form closes.
func (f *CaseForm) CreateDraft() *cases.Draft { return &f.draft }

// CloseCreate discards the draft.
func (f *CaseForm) CloseCreate() {
	f.createOpen = false
	f.draft = cases.NewDraft()
}

// SubmitCreate posts the draft. Empty required fields stop it before any
// request. On success the list is re-fetched and the form closes; on
// failure the form stays open with the draft intact.
func (f *CaseForm) SubmitCreate(ctx context.Context) error {
	if !f.createOpen {
		return ErrCreateFormClosed
	}
	if missing := f.draft.Missing(); len(missing) > 0 {
		return &ValidationError{Field: missing[0], Message: "Please fill out this field."}
	}
	if err := f.api.CreateCase(ctx, f.draft); err != nil {
		f.log.Warn("create case", zap.Error(err))
		return err
	}
	_ = f.rec.Refresh(ctx)
	f.CloseCreate()
	return nil
}

// BeginEdit copies the expanded case into the edit draft.
func (f *CaseForm) BeginEdit(ctx context.Context) error {
	if !f.CanManage(ctx) {
		return ErrForbidden
	}
	d, ok := f.rec.Expanded()
	if !ok {
		return ErrNothingExpanded
	}
	f.edit = d
	f.editing = true
	return nil
}

func (f *CaseForm) Editing() bool { return f.editing }

// EditDraft is the case under edit. Only the draft changes until Save.
func (f *CaseForm) EditDraft() *cases.Detail { return &f.edit }

// Cancel leaves edit mode. The expanded detail is untouched.
func (f *CaseForm) Cancel() {
	f.editing = false
	f.edit = cases.Detail{}
}

// Save sends the draft. On success the expanded detail becomes the draft
// (or the server copy with ConfirmAfterSave), edit mode ends and the list is
// re-fetched once. On failure edit mode stays on.
func (f *CaseForm) Save(ctx context.Context) error {
	if !f.editing {
		return ErrNotEditing
	}
	draft := f.edit
	if err := f.api.UpdateCase(ctx, draft.ID, draft); err != nil {
		f.log.Warn("update case", zap.Int64("case_id", draft.ID), zap.Error(err))
		return err
	}
	shown := draft
	if f.ConfirmAfterSave {
		if fresh, err := f.rec.api.GetCase(ctx, draft.ID); err == nil {
			shown = fresh
		} else {
			f.log.Warn("confirm case after save", zap.Int64("case_id", draft.ID), zap.Error(err))
		}
	}
	f.rec.replaceDetail(shown)
	f.Cancel()
	_ = f.rec.Refresh(ctx)
	return nil
}
