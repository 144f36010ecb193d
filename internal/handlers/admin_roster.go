package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/form"
)

var exportHeader = []string{
	"ID", "Created", "Email", "Version", "Sciezka", "Wariant",
	"SposobFinansowania", "PodstawaUstalen", "RodzajSadu", "Apelacja",
	"RokDecyzji", "WatekWiny", "Rola", "WiekRodzica", "PlecRodzica",
	"Wojewodztwo", "WielkoscMiejscowosci", "Dzieci", "WlasneDochodyNetto",
	"DrugiRodzicDochodyNetto", "Koszty",
}

// GET /api/admin/submissions.csv
func (h *Handler) AdminExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, skipped, err := h.submissions.Export(r.Context())
	if err != nil {
		h.log.Error("admin export", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, msgInternal, nil)
		return
	}
	if skipped > 0 {
		h.log.Warn("export skipped unreadable submissions", zap.Int("skipped", skipped))
	}

	filename := fmt.Sprintf("submissions-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	_ = cw.Write(exportHeader)
	for _, row := range rows {
		n := row.Data
		rec := []string{
			row.ID,
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.Email,
			n.Version,
			n.Indexed.Sciezka,
			n.Indexed.Wariant,
			n.SposobFinansowania,
			n.PodstawaUstalen,
			n.Indexed.RodzajSadu,
			n.Indexed.Apelacja,
			intStr(n.Indexed.RokDecyzji),
			boolStr(n.Indexed.WatekWiny),
			n.Respondent.Rola,
			intStr(n.Respondent.WiekRodzica),
			n.Respondent.PlecRodzica,
			n.Respondent.Wojewodztwo,
			n.Respondent.WielkoscMiejscowosci,
			children(n.Children),
		}
		if n.Income != nil {
			rec = append(rec, floatStr(n.Income.WlasneDochodyNetto), floatStr(n.Income.DrugiRodzicDochodyNetto))
		} else {
			rec = append(rec, "", "")
		}
		rec = append(rec, costs(n.Costs))
		_ = cw.Write(rec)
	}
}

// children renders one "wiek/plec/model/procent" entry per child.
func children(cs []form.ChildRecord) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, strings.Join([]string{
			intStr(c.Wiek), c.Plec, c.ModelOpieki, floatStr(c.ProcentCzasuOpieki),
		}, "/"))
	}
	return strings.Join(parts, " | ")
}

func costs(cs []form.CostRecord) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%d:%s/%s", c.ChildIndex, floatStr(c.MiesieczneKoszty), floatStr(c.KwotaAlimentow)))
	}
	return strings.Join(parts, " | ")
}

func intStr(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func floatStr(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func boolStr(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}
