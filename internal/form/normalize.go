package form

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion is written into every draft's metadata.
const CurrentVersion = "1.0"

// ErrUnknownVersion is returned for a formVersion this build cannot read.
var ErrUnknownVersion = errors.New("unknown form version")

// dataV1 is the typed view of a version 1.0 blob.
type dataV1 struct {
	SciezkaWybor        string `json:"sciezkaWybor"`
	SposobFinansowania  string `json:"sposobFinansowania"`
	PodstawaUstalen     string `json:"podstawaUstalen"`
	PodstawaUstalenInne string `json:"podstawaUstalenInne"`

	Dzieci           []childV1 `json:"dzieci"`
	CzasOpieki       []careV1  `json:"czasOpieki"`
	KosztyUtrzymania []costV1  `json:"kosztyUtrzymania"`

	WlasneDochodyNetto          *float64 `json:"wlasneDochodyNetto"`
	DrugiRodzicDochodyNetto     *float64 `json:"drugiRodzicDochodyNetto"`
	WlasneKosztyUtrzymania      *float64 `json:"wlasneKosztyUtrzymania"`
	DrugiRodzicKosztyUtrzymania *float64 `json:"drugiRodzicKosztyUtrzymania"`

	RodzajSadu string   `json:"rodzajSadu"`
	Apelacja   string   `json:"apelacja"`
	RokDecyzji *float64 `json:"rokDecyzji"`
	WatekWiny  string   `json:"watekWiny"`

	FormaPorozumienia     string   `json:"formaPorozumienia"`
	RokPorozumienia       *float64 `json:"rokPorozumienia"`
	KlauzulaWaloryzacyjna *bool    `json:"klauzulaWaloryzacyjna"`

	OpisUstalen string   `json:"opisUstalen"`
	RokUstalen  *float64 `json:"rokUstalen"`

	Rola                 string   `json:"rola"`
	WiekRodzica          *float64 `json:"wiekRodzica"`
	PlecRodzica          string   `json:"plecRodzica"`
	Wojewodztwo          string   `json:"wojewodztwo"`
	WielkoscMiejscowosci string   `json:"wielkoscMiejscowosci"`
}

type childV1 struct {
	Wiek                   *float64 `json:"wiek"`
	Plec                   string   `json:"plec"`
	SpecjalnePotrzeby      bool     `json:"specjalnePotrzeby"`
	OpisSpecjalnychPotrzeb string   `json:"opisSpecjalnychPotrzeb"`
}

type careV1 struct {
	ModelOpieki        string   `json:"modelOpieki"`
	ProcentCzasuOpieki *float64 `json:"procentCzasuOpieki"`
}

type costV1 struct {
	MiesieczneKoszty *float64 `json:"miesieczneKoszty"`
	KwotaAlimentow   *float64 `json:"kwotaAlimentow"`
}

// Indexed are the scalars lifted out of the blob for querying.
type Indexed struct {
	Sciezka    string
	Wariant    string
	RodzajSadu string
	Apelacja   string
	RokDecyzji *int
	WatekWiny  *bool
}

type ChildRecord struct {
	Index                  int
	Wiek                   *int
	Plec                   string
	SpecjalnePotrzeby      bool
	OpisSpecjalnychPotrzeb string
	ModelOpieki            string
	ProcentCzasuOpieki     *float64
}

type IncomeRecord struct {
	WlasneDochodyNetto          *float64
	DrugiRodzicDochodyNetto     *float64
	WlasneKosztyUtrzymania      *float64
	DrugiRodzicKosztyUtrzymania *float64
}

type CostRecord struct {
	ChildIndex       int
	MiesieczneKoszty *float64
	KwotaAlimentow   *float64
}

// Respondent is the "about you" section.
type Respondent struct {
	Rola                 string
	WiekRodzica          *int
	PlecRodzica          string
	Wojewodztwo          string
	WielkoscMiejscowosci string
}

// Normalized is the relational shape of one blob.
type Normalized struct {
	Version            string
	SposobFinansowania string
	PodstawaUstalen    string
	Indexed            Indexed
	Respondent         Respondent
	Children           []ChildRecord
	Income             *IncomeRecord
	Costs              []CostRecord
}

// Normalize maps a form blob of the given version onto relational records.
// It is pure: the same input always yields the same records.
func Normalize(version string, data FormData) (Normalized, error) {
	switch version {
	case "", CurrentVersion:
		return normalizeV1(data)
	}
	return Normalized{}, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
}

func normalizeV1(data FormData) (Normalized, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Normalized{}, fmt.Errorf("encode form data: %w", err)
	}
	var v dataV1
	if err := json.Unmarshal(raw, &v); err != nil {
		return Normalized{}, fmt.Errorf("decode form data: %w", err)
	}

	out := Normalized{
		Version:            CurrentVersion,
		SposobFinansowania: v.SposobFinansowania,
		PodstawaUstalen:    v.PodstawaUstalen,
		Respondent: Respondent{
			Rola:                 v.Rola,
			WiekRodzica:          toInt(v.WiekRodzica),
			PlecRodzica:          v.PlecRodzica,
			Wojewodztwo:          v.Wojewodztwo,
			WielkoscMiejscowosci: v.WielkoscMiejscowosci,
		},
	}

	// The cached branch is not trusted; it is derived again from the basis.
	branch, _ := ClassifyBranch(v.PodstawaUstalen)
	out.Indexed = Indexed{
		Sciezka: v.SciezkaWybor,
		Wariant: string(branch),
	}
	switch branch {
	case BranchCourt:
		out.Indexed.RodzajSadu = v.RodzajSadu
		out.Indexed.Apelacja = v.Apelacja
		out.Indexed.RokDecyzji = toInt(v.RokDecyzji)
		switch v.WatekWiny {
		case "tak":
			out.Indexed.WatekWiny = boolPtr(true)
		case "nie":
			out.Indexed.WatekWiny = boolPtr(false)
		}
	case BranchAgreement:
		out.Indexed.RokDecyzji = toInt(v.RokPorozumienia)
	case BranchOther:
		out.Indexed.RokDecyzji = toInt(v.RokUstalen)
	}

	for i, c := range v.Dzieci {
		rec := ChildRecord{
			Index:                  i,
			Wiek:                   toInt(c.Wiek),
			Plec:                   c.Plec,
			SpecjalnePotrzeby:      c.SpecjalnePotrzeby,
			OpisSpecjalnychPotrzeb: c.OpisSpecjalnychPotrzeb,
		}
		if i < len(v.CzasOpieki) {
			rec.ModelOpieki = v.CzasOpieki[i].ModelOpieki
			rec.ProcentCzasuOpieki = v.CzasOpieki[i].ProcentCzasuOpieki
		}
		out.Children = append(out.Children, rec)
	}

	if v.WlasneDochodyNetto != nil || v.DrugiRodzicDochodyNetto != nil ||
		v.WlasneKosztyUtrzymania != nil || v.DrugiRodzicKosztyUtrzymania != nil {
		out.Income = &IncomeRecord{
			WlasneDochodyNetto:          v.WlasneDochodyNetto,
			DrugiRodzicDochodyNetto:     v.DrugiRodzicDochodyNetto,
			WlasneKosztyUtrzymania:      v.WlasneKosztyUtrzymania,
			DrugiRodzicKosztyUtrzymania: v.DrugiRodzicKosztyUtrzymania,
		}
	}

	for i, c := range v.KosztyUtrzymania {
		out.Costs = append(out.Costs, CostRecord{
			ChildIndex:       i,
			MiesieczneKoszty: c.MiesieczneKoszty,
			KwotaAlimentow:   c.KwotaAlimentow,
		})
	}
	return out, nil
}

func toInt(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func boolPtr(b bool) *bool { return &b }
