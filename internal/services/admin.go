package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/alimatrix/alimatrix/internal/form"
	"github.com/alimatrix/alimatrix/internal/models"
)

var ErrNotFound = errors.New("submission not found")

// Summary is one row of the admin listing.
type Summary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Email      string    `json:"email"`
	Sciezka    string    `json:"sciezka"`
	Wariant    string    `json:"wariant,omitempty"`
	RodzajSadu string    `json:"rodzajSadu,omitempty"`
	Apelacja   string    `json:"apelacja,omitempty"`
	RokDecyzji *int      `json:"rokDecyzji,omitempty"`
	WatekWiny  *bool     `json:"watekWiny,omitempty"`
	Children   int       `json:"children"`
}

// ExportRow is a submission re-derived from its stored blob.
type ExportRow struct {
	ID        string
	CreatedAt time.Time
	Email     string
	Data      form.Normalized
}

// Page is one window of the admin listing. Limit and Offset are the values
// actually applied.
type Page struct {
	Items  []Summary `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// List returns submissions newest first. A limit outside 1..500 falls back
// to 50 and a negative offset to 0.
func (s *SubmissionService) List(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx)

	page := Page{Items: []Summary{}, Limit: limit, Offset: offset}
	if err := q.Model(&models.Submission{}).Count(&page.Total).Error; err != nil {
		return Page{}, fmt.Errorf("count submissions: %w", err)
	}

	var out []Summary
	err := q.Table("submissions").
		Select(`submissions.id, submissions.created_at, contacts.email,
		        submissions.sciezka, submissions.wariant, submissions.rodzaj_sadu,
		        submissions.apelacja, submissions.rok_decyzji, submissions.watek_winy,
		        (SELECT COUNT(*) FROM children WHERE children.submission_id = submissions.id) AS children`).
		Joins("JOIN contacts ON contacts.id = submissions.contact_id").
		Order("submissions.created_at DESC, submissions.id DESC").
		Limit(limit).Offset(offset).
		Scan(&out).Error
	if err != nil {
		return Page{}, fmt.Errorf("list submissions: %w", err)
	}
	if out != nil {
		page.Items = out
	}
	return page, nil
}

// Exists reports whether a submission with id was stored.
func (s *SubmissionService) Exists(ctx context.Context, id string) (bool, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).Select("id").Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Export normalizes every stored blob again, oldest first. Rows whose blob
// cannot be read are skipped and counted in skipped.
func (s *SubmissionService) Export(ctx context.Context) (rows []ExportRow, skipped int, err error) {
	var subs []models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Contact").
		Order("created_at ASC, id ASC").
		Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("load submissions: %w", err)
	}

	for _, sub := range subs {
		var data form.FormData
		if err := json.Unmarshal([]byte(sub.FormData), &data); err != nil {
			s.log.Sugar().Warnw("unreadable submission blob", "id", sub.ID, "error", err)
			skipped++
			continue
		}
		n, err := form.Normalize(sub.FormVersion, data)
		if err != nil {
			s.log.Sugar().Warnw("cannot normalize submission", "id", sub.ID, "error", err)
			skipped++
			continue
		}
		rows = append(rows, ExportRow{
			ID:        sub.ID,
			CreatedAt: sub.CreatedAt,
			Email:     sub.Contact.Email,
			Data:      n,
		})
	}
	return rows, skipped, nil
}
