package wizard

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/drafts"
	"github.com/alimatrix/alimatrix/internal/form"
	"github.com/alimatrix/alimatrix/internal/metrics"
	"github.com/alimatrix/alimatrix/internal/security"
	"github.com/alimatrix/alimatrix/internal/services"
	"github.com/alimatrix/alimatrix/internal/validation"
)

// Submitter is the final submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, req services.SubmitRequest) (services.SubmitResult, error)
}

type Options struct {
	SaveAttempts    int
	SaveBackoff     time.Duration
	FallbackTimeout time.Duration
}

// Controller drives one wizard session at a time: it guards step entry,
// validates and saves step answers, and finalizes complete drafts.
type Controller struct {
	drafts    *drafts.Store
	validator *validation.Validator
	submitter Submitter
	debounce  *security.Debouncer
	opts      Options
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func New(
	store *drafts.Store,
	validator *validation.Validator,
	submitter Submitter,
	debounce *security.Debouncer,
	opts Options,
	log *zap.Logger,
	m *metrics.Metrics,
) *Controller {
	if opts.SaveAttempts <= 0 {
		opts.SaveAttempts = 3
	}
	if opts.SaveBackoff <= 0 {
		opts.SaveBackoff = 200 * time.Millisecond
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		drafts:    store,
		validator: validator,
		submitter: submitter,
		debounce:  debounce,
		opts:      opts,
		log:       log,
		metrics:   m,
	}
}

// View is what a step page needs to render.
type View struct {
	Step    form.StepID   `json:"step"`
	Answers form.FormData `json:"answers"`
	Prev    form.StepID   `json:"prev,omitempty"`
	Path    []form.StepID `json:"path"`
	Index   int           `json:"index"`
}

// Outcome is the result of a forward move.
type Outcome struct {
	State       State       `json:"-"`
	Next        form.StepID `json:"next,omitempty"`
	Done        bool        `json:"done"`
	ScrollToTop bool        `json:"scrollToTop"`
}

// Enter checks that step may be shown for the session's draft.
func (c *Controller) Enter(ctx context.Context, sid string, step form.StepID) (View, error) {
	d, err := c.drafts.Read(ctx, sid)
	if err != nil {
		return View{}, err
	}
	if to, ok := form.Guard(d.FormData, step); !ok {
		return View{}, &RedirectError{To: to}
	}
	return c.view(d.FormData, step), nil
}

func (c *Controller) view(d form.FormData, step form.StepID) View {
	s, _ := form.Lookup(step)
	path := form.Path(d)
	v := View{Step: step, Answers: d.Pick(s.Fields), Path: path}
	for i, id := range path {
		if id == step {
			v.Index = i
		}
	}
	if prev, ok := form.Prev(d, step); ok {
		v.Prev = prev
	}
	return v
}

// Advance validates answers for step, saves them into the draft and returns
// the step to show next. Only the step's own fields are written.
func (c *Controller) Advance(ctx context.Context, sid string, step form.StepID, answers form.FormData) (out Outcome, err error) {
	log := c.log.With(zap.String("sid", sid), zap.String("step", string(step)))
	defer func() { c.metrics.Step(string(step), result(out.State, err)) }()

	d, err := c.drafts.Read(ctx, sid)
	if err != nil {
		return Outcome{State: Idle}, err
	}
	if to, ok := form.Guard(d.FormData, step); !ok {
		return Outcome{State: Idle}, &RedirectError{To: to}
	}

	st := Validating
	res, err := c.validator.Validate(step, answers)
	if err != nil {
		return Outcome{State: st}, err
	}
	if !res.Valid {
		st = st.to(Invalid)
		log.Debug("step invalid", zap.Any("errors", res.Errors))
		return Outcome{State: st}, &ValidationError{Errors: res.Errors}
	}
	st = st.to(Valid)

	partial, remove := c.changes(d.FormData, step, res.Data)
	merged := d.FormData.Merge(partial).Without(remove...)

	st = st.to(Saving)
	if err := c.save(ctx, log, sid, partial, remove, merged); err != nil {
		return Outcome{State: st.to(SaveFailed)}, err
	}
	st = st.to(Saved).to(Navigating)

	next, done := form.Next(merged, step)
	return Outcome{State: st, Next: next, Done: done, ScrollToTop: true}, nil
}

// changes works out what a valid step write does to the draft: the step's
// answers, plus the cached branch on the settlement-basis step. Step fields
// left out of answers are removed, as are the answers of a branch that no
// longer applies.
func (c *Controller) changes(d form.FormData, step form.StepID, answers form.FormData) (form.FormData, []string) {
	s, _ := form.Lookup(step)
	partial := answers.Pick(s.Fields)

	var remove []string
	for _, f := range s.Fields {
		if _, ok := partial[f]; !ok {
			remove = append(remove, f)
		}
	}

	if step == form.StepPodstawa {
		next, ok := form.ClassifyBranch(partial.String(form.FieldPodstawa))
		if ok {
			partial[form.FieldWariant] = string(next)
			prev, _ := form.ParseBranch(d.String(form.FieldWariant))
			remove = append(remove, form.StaleFields(prev, next)...)
		} else {
			remove = append(remove, form.FieldWariant)
		}
	}
	return partial, remove
}

// save retries the normal write with exponential backoff. When every
// attempt fails, one simplified write of the whole draft is made on a
// context the client cannot cancel.
func (c *Controller) save(ctx context.Context, log *zap.Logger, sid string, partial form.FormData, remove []string, merged form.FormData) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.SaveBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (drafts.Draft, error) {
		attempt++
		if attempt > 1 {
			c.metrics.SaveRetry()
		}
		return c.drafts.Write(ctx, sid, partial, remove...)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.opts.SaveAttempts)))
	if err == nil {
		return nil
	}
	log.Warn("draft save failed, trying fallback", zap.Int("attempts", attempt), zap.Error(err))

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FallbackTimeout)
	defer cancel()
	if ferr := c.drafts.Put(fctx, sid, drafts.Draft{FormData: merged}); ferr != nil {
		c.metrics.Fallback(false)
		log.Error("draft fallback save failed", zap.Error(ferr))
		return &SaveError{Attempts: attempt + 1, Err: errors.Join(err, ferr)}
	}
	c.metrics.Fallback(true)
	return nil
}

// Back returns the step before step on the draft's path. It never
// validates; on the first step it stays put.
func (c *Controller) Back(ctx context.Context, sid string, step form.StepID) (form.StepID, error) {
	if _, ok := form.Lookup(step); !ok {
		return "", &RedirectError{To: form.StepWyborSciezki}
	}
	d, err := c.drafts.Read(ctx, sid)
	if err != nil {
		return "", err
	}
	if prev, ok := form.Prev(d.FormData, step); ok {
		return prev, nil
	}
	return form.StepWyborSciezki, nil
}

// Draft returns the session's stored draft.
func (c *Controller) Draft(ctx context.Context, sid string) (drafts.Draft, error) {
	return c.drafts.Read(ctx, sid)
}

// Reset abandons the session's draft.
func (c *Controller) Reset(ctx context.Context, sid string) error {
	return c.drafts.Reset(ctx, sid)
}

// FinalizeRequest carries what the client sends with the final step.
type FinalizeRequest struct {
	Token    string
	ClientID string
	// Honeypot is the hidden trap field; humans leave it empty.
	Honeypot string
}

// Finalize submits a complete draft. The draft is cleared only after the
// pipeline accepted it.
func (c *Controller) Finalize(ctx context.Context, sid string, req FinalizeRequest) (services.SubmitResult, error) {
	safe, err := c.debounce.SafeToSubmit(ctx, sid)
	if err != nil {
		c.log.Warn("debounce unavailable", zap.Error(err))
	} else if !safe {
		return services.SubmitResult{}, &services.SubmitError{Kind: services.KindDebounced}
	}

	d, err := c.drafts.Read(ctx, sid)
	if err != nil {
		return services.SubmitResult{}, err
	}
	if !form.PathComplete(d.FormData) {
		to, _ := form.Guard(d.FormData, form.StepKontakt)
		return services.SubmitResult{}, &RedirectError{To: to}
	}
	if err := c.debounce.RecordSubmission(ctx, sid); err != nil {
		c.log.Warn("debounce record", zap.Error(err))
	}

	data := d.FormData.Clone()
	if req.Honeypot != "" {
		data[form.FieldHoneypot] = req.Honeypot
	}
	res, err := c.submitter.Submit(ctx, services.SubmitRequest{
		Data:     data,
		Token:    req.Token,
		ClientID: req.ClientID,
	})
	if err != nil {
		if refusedBeforeProcessing(err) {
			if cerr := c.debounce.Clear(ctx, sid); cerr != nil {
				c.log.Warn("debounce clear", zap.Error(cerr))
			}
		}
		return services.SubmitResult{}, err
	}
	if err := c.drafts.Reset(ctx, sid); err != nil {
		c.log.Error("clear submitted draft", zap.String("sid", sid), zap.Error(err))
	}
	return res, nil
}

// refusedBeforeProcessing reports whether the pipeline turned the request
// away at its security gates, before looking at the data. Such a refusal
// does not count as a submission attempt.
func refusedBeforeProcessing(err error) bool {
	var se *services.SubmitError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Kind {
	case services.KindRateLimited, services.KindTokenMissing, services.KindTokenInvalid:
		return true
	}
	return false
}

func result(s State, err error) string {
	var re *RedirectError
	switch {
	case errors.As(err, &re):
		return "redirect"
	case s == Invalid:
		return "invalid"
	case s == SaveFailed:
		return "save_failed"
	case err != nil:
		return "error"
	}
	return "ok"
}
