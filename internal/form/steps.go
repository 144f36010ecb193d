package form

import "strings"

// StepID is the URL segment of a wizard page.
type StepID string

const (
	StepWyborSciezki             StepID = "wybor-sciezki"
	StepFinansowanie             StepID = "finansowanie-potrzeb"
	StepPodstawa                 StepID = "podstawa-ustalen"
	StepDzieci                   StepID = "dzieci"
	StepCzasOpieki               StepID = "czas-opieki"
	StepKoszty                   StepID = "koszty-utrzymania"
	StepDochody                  StepID = "dochody-i-koszty"
	StepPostepowanieSadowe       StepID = "postepowanie-sadowe"
	StepPostepowaniePorozumienie StepID = "postepowanie-porozumienie"
	StepPostepowanieInne         StepID = "postepowanie-inne"
	StepInformacje               StepID = "informacje-o-tobie"
	StepKontakt                  StepID = "kontakt"
)

// Field names shared by more than one package.
const (
	FieldSciezka      = "sciezkaWybor"
	FieldPodstawa     = "podstawaUstalen"
	FieldPodstawaInne = "podstawaUstalenInne"
	FieldWariant      = "wariantPostepu"
	FieldEmail        = "contactEmail"
	FieldZgodaPrzetw  = "zgodaPrzetwarzanie"
	FieldZgodaKontakt = "zgodaKontakt"
	FieldHoneypot     = "notHuman"

	SciezkaNieustalone = "nieustalone"
	PodstawaInne       = "inne"
)

// Step describes one page of the wizard.
type Step struct {
	ID StepID
	// Fields are the top-level keys the step is allowed to write.
	Fields []string
	// Numeric lists paths whose values may arrive as numeric strings.
	// "*" matches every element of an array.
	Numeric []string
	// Branch is set on the branch-specific steps only.
	Branch Branch

	required func(FormData) []string
}

// Required returns the keys that must be present for the step to count as
// answered, given the rest of the draft.
func (s Step) Required(d FormData) []string {
	if s.required == nil {
		return s.Fields
	}
	return s.required(d)
}

// Complete reports whether every required key of the step is present.
func (s Step) Complete(d FormData) bool {
	for _, k := range s.Required(d) {
		if !d.Has(k) {
			return false
		}
	}
	return true
}

// Owns reports whether key belongs to this step.
func (s Step) Owns(key string) bool {
	for _, f := range s.Fields {
		if f == key {
			return true
		}
	}
	return false
}

func static(keys ...string) func(FormData) []string {
	return func(FormData) []string { return keys }
}

var catalogue = []Step{
	{
		ID:       StepWyborSciezki,
		Fields:   []string{FieldSciezka},
		required: static(FieldSciezka),
	},
	{
		ID:       StepFinansowanie,
		Fields:   []string{"sposobFinansowania"},
		required: static("sposobFinansowania"),
	},
	{
		ID:     StepPodstawa,
		Fields: []string{FieldPodstawa, FieldPodstawaInne},
		required: func(d FormData) []string {
			keys := []string{FieldPodstawa, FieldWariant}
			if strings.TrimSpace(d.String(FieldPodstawa)) == PodstawaInne {
				keys = append(keys, FieldPodstawaInne)
			}
			return keys
		},
	},
	{
		ID:       StepDzieci,
		Fields:   []string{"dzieci"},
		Numeric:  []string{"dzieci.*.wiek"},
		required: static("dzieci"),
	},
	{
		ID:       StepCzasOpieki,
		Fields:   []string{"czasOpieki"},
		Numeric:  []string{"czasOpieki.*.procentCzasuOpieki"},
		required: static("czasOpieki"),
	},
	{
		ID:       StepKoszty,
		Fields:   []string{"kosztyUtrzymania"},
		Numeric:  []string{"kosztyUtrzymania.*.miesieczneKoszty", "kosztyUtrzymania.*.kwotaAlimentow"},
		required: static("kosztyUtrzymania"),
	},
	{
		ID: StepDochody,
		Fields: []string{
			"wlasneDochodyNetto", "drugiRodzicDochodyNetto",
			"wlasneKosztyUtrzymania", "drugiRodzicKosztyUtrzymania",
		},
		Numeric: []string{
			"wlasneDochodyNetto", "drugiRodzicDochodyNetto",
			"wlasneKosztyUtrzymania", "drugiRodzicKosztyUtrzymania",
		},
		required: static("wlasneDochodyNetto", "drugiRodzicDochodyNetto"),
	},
	{
		ID:       StepPostepowanieSadowe,
		Fields:   []string{"rodzajSadu", "apelacja", "rokDecyzji", "watekWiny"},
		Numeric:  []string{"rokDecyzji"},
		Branch:   BranchCourt,
		required: static("rodzajSadu", "apelacja", "rokDecyzji", "watekWiny"),
	},
	{
		ID:       StepPostepowaniePorozumienie,
		Fields:   []string{"formaPorozumienia", "rokPorozumienia", "klauzulaWaloryzacyjna"},
		Numeric:  []string{"rokPorozumienia"},
		Branch:   BranchAgreement,
		required: static("formaPorozumienia", "rokPorozumienia", "klauzulaWaloryzacyjna"),
	},
	{
		ID:       StepPostepowanieInne,
		Fields:   []string{"opisUstalen", "rokUstalen"},
		Numeric:  []string{"rokUstalen"},
		Branch:   BranchOther,
		required: static("opisUstalen"),
	},
	{
		ID:       StepInformacje,
		Fields:   []string{"rola", "wiekRodzica", "plecRodzica", "wojewodztwo", "wielkoscMiejscowosci"},
		Numeric:  []string{"wiekRodzica"},
		required: static("rola", "wiekRodzica", "plecRodzica", "wojewodztwo", "wielkoscMiejscowosci"),
	},
	{
		ID:       StepKontakt,
		Fields:   []string{FieldEmail, FieldZgodaPrzetw, FieldZgodaKontakt},
		required: static(FieldEmail, FieldZgodaPrzetw, FieldZgodaKontakt),
	},
}

var byID = func() map[StepID]Step {
	m := make(map[StepID]Step, len(catalogue))
	for _, s := range catalogue {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the step with the given id.
func Lookup(id StepID) (Step, bool) {
	s, ok := byID[id]
	return s, ok
}

// Steps returns the whole catalogue in declaration order.
func Steps() []Step {
	out := make([]Step, len(catalogue))
	copy(out, catalogue)
	return out
}

// Fields returns every key a stored draft may carry: the fields owned by
// the steps plus the cached branch.
func Fields() []string {
	var out []string
	for _, s := range catalogue {
		out = append(out, s.Fields...)
	}
	return append(out, FieldWariant)
}
