package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/alimatrix/alimatrix/internal/form"
	"github.com/alimatrix/alimatrix/internal/metrics"
	"github.com/alimatrix/alimatrix/internal/models"
	"github.com/alimatrix/alimatrix/internal/security"
	"github.com/alimatrix/alimatrix/internal/validation"
)

const msgRequired = "To pole jest wymagane."

// requiredFields are checked before any schema validation.
var requiredFields = []string{form.FieldEmail, form.FieldZgodaPrzetw, form.FieldZgodaKontakt}

type SubmitRequest struct {
	Data     form.FormData
	Token    string
	ClientID string
}

// SubmitResult carries the reference id. Persisted is false for requests
// that were answered with a decoy id.
type SubmitResult struct {
	ID        string
	Persisted bool
}

type Options struct {
	RateLimit  int
	RateWindow time.Duration
	Production bool
}

// SubmissionService runs the server side of a final submission.
type SubmissionService struct {
	db        *gorm.DB
	tokens    *security.Tokens
	limiter   *security.Limiter
	validator *validation.Validator
	opts      Options
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewSubmissionService(
	gdb *gorm.DB,
	tokens *security.Tokens,
	limiter *security.Limiter,
	validator *validation.Validator,
	opts Options,
	log *zap.Logger,
	m *metrics.Metrics,
) *SubmissionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionService{
		db:        gdb,
		tokens:    tokens,
		limiter:   limiter,
		validator: validator,
		opts:      opts,
		log:       log,
		metrics:   m,
	}
}

// Submit checks, cleans and stores one submission. Every refusal is a
// *SubmitError.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (res SubmitResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "created"
		var se *SubmitError
		switch {
		case errors.As(err, &se):
			outcome = string(se.Kind)
		case err != nil:
			outcome = "error"
		case !res.Persisted:
			outcome = "decoy"
		}
		s.metrics.Submission(outcome, time.Since(start).Seconds())
	}()

	log := s.log.With(zap.String("client", req.ClientID))

	// 1. rate limit; a broken store does not block submissions
	d, lerr := s.limiter.Check(ctx, req.ClientID, s.opts.RateLimit, s.opts.RateWindow)
	if lerr != nil {
		log.Warn("rate limiter unavailable", zap.Error(lerr))
	} else if !d.Allowed {
		return SubmitResult{}, &SubmitError{Kind: KindRateLimited, RetryAfter: d.RetryAfter}
	}

	// 2-3. CSRF: present, registered, single use
	tok := strings.TrimSpace(req.Token)
	if tok == "" {
		return SubmitResult{}, refuse(KindTokenMissing, nil)
	}
	valid, verr := s.tokens.Verify(ctx, tok)
	if verr != nil {
		log.Error("token store unavailable", zap.Error(verr))
		return SubmitResult{}, &SubmitError{Kind: KindTokenInvalid, Err: verr}
	}
	if !valid {
		return SubmitResult{}, refuse(KindTokenInvalid, nil)
	}
	if cerr := s.tokens.Consume(ctx, tok); cerr != nil {
		log.Warn("consume token", zap.Error(cerr))
	}

	// 4. sanitize, then the honeypot. The address is checked on its raw
	// value: HTML escaping would mangle a valid ' or & in the local part.
	rawEmail := req.Data.String(form.FieldEmail)
	data := sanitize(req.Data)
	if data.Has(form.FieldHoneypot) {
		log.Info("honeypot triggered")
		return SubmitResult{ID: uuid.NewString()}, nil
	}
	delete(data, form.FieldHoneypot)

	// 5. required fields
	missing := map[string]string{}
	for _, f := range requiredFields {
		if !data.Has(f) {
			missing[f] = msgRequired
		}
	}
	if len(missing) > 0 {
		return SubmitResult{}, refuse(KindMissingField, missing)
	}

	// 6. e-mail
	email, ok := NormEmail(rawEmail)
	if !ok || email == "" {
		return SubmitResult{}, refuse(KindInvalidEmail, map[string]string{
			form.FieldEmail: "Podaj poprawny adres e-mail.",
		})
	}
	data[form.FieldEmail] = email

	// 7. schema
	vr, err := s.validator.ValidateSubmission(data)
	if err != nil {
		log.Error("validate submission", zap.Error(err))
		return SubmitResult{}, &SubmitError{Kind: KindPersistence, Err: err}
	}
	if !vr.Valid {
		fields := vr.Errors
		if s.opts.Production {
			fields = nil
		}
		log.Debug("submission rejected", zap.Any("errors", vr.Errors))
		return SubmitResult{}, refuse(KindValidation, fields)
	}

	// 8. persist
	id, err := s.persist(ctx, vr.Data)
	if err != nil {
		if isDuplicate(err) {
			return SubmitResult{}, &SubmitError{Kind: KindDuplicate, Err: err}
		}
		log.Error("persist submission", zap.Error(err))
		return SubmitResult{}, &SubmitError{Kind: KindPersistence, Err: err}
	}
	log.Info("submission stored", zap.String("id", id))
	return SubmitResult{ID: id, Persisted: true}, nil
}

func sanitize(d form.FormData) form.FormData {
	out, _ := security.Sanitize(map[string]any(d)).(map[string]any)
	if out == nil {
		return form.FormData{}
	}
	return form.FormData(out)
}

// persist writes the contact and the submission with its rows in one
// transaction.
func (s *SubmissionService) persist(ctx context.Context, data form.FormData) (string, error) {
	n, err := form.Normalize(form.CurrentVersion, data)
	if err != nil {
		return "", err
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode form data: %w", err)
	}

	id := uuid.NewString()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact := models.Contact{
			Email:              data.String(form.FieldEmail),
			ZgodaPrzetwarzanie: data[form.FieldZgodaPrzetw] == true,
			ZgodaKontakt:       data[form.FieldZgodaKontakt] == true,
		}
		if err := tx.Create(&contact).Error; err != nil {
			return err
		}
		sub := buildSubmission(id, contact.ID, string(blob), n)
		return tx.Create(&sub).Error
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func buildSubmission(id string, contactID uint, blob string, n form.Normalized) models.Submission {
	sub := models.Submission{
		ID:                   id,
		ContactID:            contactID,
		FormVersion:          n.Version,
		FormData:             blob,
		Sciezka:              n.Indexed.Sciezka,
		Wariant:              n.Indexed.Wariant,
		SposobFinansowania:   n.SposobFinansowania,
		PodstawaUstalen:      n.PodstawaUstalen,
		RodzajSadu:           n.Indexed.RodzajSadu,
		Apelacja:             n.Indexed.Apelacja,
		RokDecyzji:           n.Indexed.RokDecyzji,
		WatekWiny:            n.Indexed.WatekWiny,
		Rola:                 n.Respondent.Rola,
		WiekRodzica:          n.Respondent.WiekRodzica,
		PlecRodzica:          n.Respondent.PlecRodzica,
		Wojewodztwo:          n.Respondent.Wojewodztwo,
		WielkoscMiejscowosci: n.Respondent.WielkoscMiejscowosci,
	}
	for _, c := range n.Children {
		sub.Children = append(sub.Children, models.Child{
			Position:               c.Index,
			Wiek:                   c.Wiek,
			Plec:                   c.Plec,
			SpecjalnePotrzeby:      c.SpecjalnePotrzeby,
			OpisSpecjalnychPotrzeb: c.OpisSpecjalnychPotrzeb,
			ModelOpieki:            c.ModelOpieki,
			ProcentCzasuOpieki:     c.ProcentCzasuOpieki,
		})
	}
	if n.Income != nil {
		sub.Dochody = &models.Dochody{
			WlasneDochodyNetto:          n.Income.WlasneDochodyNetto,
			DrugiRodzicDochodyNetto:     n.Income.DrugiRodzicDochodyNetto,
			WlasneKosztyUtrzymania:      n.Income.WlasneKosztyUtrzymania,
			DrugiRodzicKosztyUtrzymania: n.Income.DrugiRodzicKosztyUtrzymania,
		}
	}
	for _, c := range n.Costs {
		sub.KosztyUtrzymania = append(sub.KosztyUtrzymania, models.KosztyUtrzymania{
			ChildIndex:       c.ChildIndex,
			MiesieczneKoszty: c.MiesieczneKoszty,
			KwotaAlimentow:   c.KwotaAlimentow,
		})
	}
	return sub
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
