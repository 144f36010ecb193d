package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBranch(t *testing.T) {
	cases := map[string]Branch{
		"zabezpieczenie": BranchCourt,
		"wyrok":          BranchCourt,
		"ugoda-sad":      BranchCourt,
		"mediacja":       BranchAgreement,
		"prywatne":       BranchAgreement,
		"inne":           BranchOther,
		"cos-nowego":     BranchOther,
	}
	for basis, want := range cases {
		got, ok := ClassifyBranch(basis)
		if !ok || got != want {
			t.Errorf("ClassifyBranch(%q) = %q, %v; want %q", basis, got, ok, want)
		}
	}
	for _, empty := range []string{"", "   "} {
		if _, ok := ClassifyBranch(empty); ok {
			t.Errorf("ClassifyBranch(%q) should not classify", empty)
		}
	}
}

func TestDispatchBranch(t *testing.T) {
	assert.Equal(t, StepPostepowanieSadowe, DispatchBranch(FormData{FieldWariant: "court"}))
	assert.Equal(t, StepPostepowaniePorozumienie, DispatchBranch(FormData{FieldWariant: "agreement"}))
	assert.Equal(t, StepPostepowanieInne, DispatchBranch(FormData{FieldWariant: "other"}))
	assert.Equal(t, StepPodstawa, DispatchBranch(FormData{FieldWariant: "bogus"}))
	assert.Equal(t, StepPodstawa, DispatchBranch(FormData{}))
}

func TestStaleFields(t *testing.T) {
	assert.Nil(t, StaleFields("", BranchCourt))
	assert.Nil(t, StaleFields(BranchCourt, BranchCourt))
	assert.ElementsMatch(t,
		[]string{"rodzajSadu", "apelacja", "rokDecyzji", "watekWiny"},
		StaleFields(BranchCourt, BranchAgreement))
}

// fullCourtDraft answers every step of the court path.
func fullCourtDraft() FormData {
	return FormData{
		FieldSciezka:         "ustalone",
		"sposobFinansowania": "platnosc-alimentow",
		FieldPodstawa:        "wyrok",
		FieldWariant:         "court",
		"dzieci":             []any{map[string]any{"wiek": 7.0, "plec": "K", "specjalnePotrzeby": false}},
		"czasOpieki":         []any{map[string]any{"modelOpieki": "wylaczna", "procentCzasuOpieki": 80.0}},
		"kosztyUtrzymania":   []any{map[string]any{"miesieczneKoszty": 1500.0, "kwotaAlimentow": 800.0}},
		"wlasneDochodyNetto": 5000.0, "drugiRodzicDochodyNetto": 7000.0,
		"rodzajSadu": "rejonowy", "apelacja": "warszawska", "rokDecyzji": 2021.0, "watekWiny": "nie",
		"rola": "uprawniony", "wiekRodzica": 35.0, "plecRodzica": "K",
		"wojewodztwo": "mazowieckie", "wielkoscMiejscowosci": "miasto-powyzej-500k",
		FieldEmail: "a@b.pl", FieldZgodaPrzetw: true, FieldZgodaKontakt: true,
	}
}

func TestPath_ShortAndFull(t *testing.T) {
	short := Path(FormData{FieldSciezka: SciezkaNieustalone})
	assert.Equal(t, []StepID{StepWyborSciezki, StepKontakt}, short)

	full := Path(fullCourtDraft())
	require.Len(t, full, 10)
	assert.Equal(t, StepPostepowanieSadowe, full[7])

	noBranch := Path(FormData{FieldSciezka: "ustalone"})
	assert.NotContains(t, noBranch, StepPostepowanieSadowe)
}

func TestGuard_RedirectsToEarliestUnmetStep(t *testing.T) {
	d := fullCourtDraft()
	delete(d, "dzieci")

	to, ok := Guard(d, StepDochody)
	assert.False(t, ok)
	assert.Equal(t, StepDzieci, to)

	to, ok = Guard(d, StepDzieci)
	assert.True(t, ok)
	assert.Equal(t, StepDzieci, to)

	to, ok = Guard(FormData{}, StepKontakt)
	assert.False(t, ok)
	assert.Equal(t, StepWyborSciezki, to)

	to, ok = Guard(FormData{}, StepID("nie-ma-takiego"))
	assert.False(t, ok)
	assert.Equal(t, StepWyborSciezki, to)
}

func TestGuard_BranchStepWithoutBranchGoesToBasis(t *testing.T) {
	d := fullCourtDraft()
	delete(d, FieldWariant)

	to, ok := Guard(d, StepPostepowanieSadowe)
	assert.False(t, ok)
	assert.Equal(t, StepPodstawa, to)
}

func TestGuard_WrongBranchStep(t *testing.T) {
	d := fullCourtDraft()
	to, ok := Guard(d, StepPostepowaniePorozumienie)
	assert.False(t, ok)
	assert.Equal(t, StepKontakt, to, "complete draft sends off-path requests to the last step")
}

func TestGuard_OtherBasisNeedsDetail(t *testing.T) {
	d := fullCourtDraft()
	d[FieldPodstawa] = PodstawaInne
	d[FieldWariant] = "other"

	to, ok := Guard(d, StepDzieci)
	assert.False(t, ok)
	assert.Equal(t, StepPodstawa, to)

	d[FieldPodstawaInne] = "ustalenia rodzinne"
	_, ok = Guard(d, StepDzieci)
	assert.True(t, ok)
}

func TestNextPrev(t *testing.T) {
	d := fullCourtDraft()

	next, done := Next(d, StepDochody)
	assert.False(t, done)
	assert.Equal(t, StepPostepowanieSadowe, next)

	next, _ = Next(d, StepPostepowanieSadowe)
	assert.Equal(t, StepInformacje, next)

	_, done = Next(d, StepKontakt)
	assert.True(t, done)

	prev, ok := Prev(d, StepInformacje)
	assert.True(t, ok)
	assert.Equal(t, StepPostepowanieSadowe, prev)

	_, ok = Prev(d, StepWyborSciezki)
	assert.False(t, ok)

	delete(d, FieldWariant)
	next, _ = Next(d, StepDochody)
	assert.Equal(t, StepPodstawa, next)
}

func TestPathComplete(t *testing.T) {
	assert.True(t, PathComplete(fullCourtDraft()))
	assert.True(t, PathComplete(FormData{
		FieldSciezka: SciezkaNieustalone,
		FieldEmail:   "a@b.pl", FieldZgodaPrzetw: true, FieldZgodaKontakt: false,
	}))
	assert.False(t, PathComplete(FormData{FieldSciezka: "ustalone"}))
}

func TestFormData_MergeKeepsUnrelated(t *testing.T) {
	d := FormData{"a": 1, "b": "x"}
	m := d.Merge(FormData{"b": "y", "c": true})
	assert.Equal(t, FormData{"a": 1, "b": "y", "c": true}, m)
	assert.Equal(t, "x", d["b"], "merge must not mutate the receiver")
}

func TestAnswered(t *testing.T) {
	assert.False(t, Answered(nil))
	assert.False(t, Answered(""))
	assert.False(t, Answered("  "))
	assert.False(t, Answered([]any{}))
	assert.True(t, Answered(false))
	assert.True(t, Answered(0.0))
	assert.True(t, Answered("x"))
}

func TestNormalize_CourtDraft(t *testing.T) {
	n, err := Normalize(CurrentVersion, fullCourtDraft())
	require.NoError(t, err)

	assert.Equal(t, "court", n.Indexed.Wariant)
	assert.Equal(t, "rejonowy", n.Indexed.RodzajSadu)
	assert.Equal(t, "warszawska", n.Indexed.Apelacja)
	require.NotNil(t, n.Indexed.RokDecyzji)
	assert.Equal(t, 2021, *n.Indexed.RokDecyzji)
	require.NotNil(t, n.Indexed.WatekWiny)
	assert.False(t, *n.Indexed.WatekWiny)

	require.Len(t, n.Children, 1)
	assert.Equal(t, "wylaczna", n.Children[0].ModelOpieki)
	require.NotNil(t, n.Children[0].Wiek)
	assert.Equal(t, 7, *n.Children[0].Wiek)

	require.NotNil(t, n.Income)
	assert.Equal(t, 5000.0, *n.Income.WlasneDochodyNetto)
	require.Len(t, n.Costs, 1)
	assert.Equal(t, 35, *n.Respondent.WiekRodzica)
}

func TestNormalize_IgnoresCachedBranch(t *testing.T) {
	d := fullCourtDraft()
	d[FieldPodstawa] = "mediacja"
	d["rokPorozumienia"] = 2019.0

	n, err := Normalize(CurrentVersion, d)
	require.NoError(t, err)
	assert.Equal(t, "agreement", n.Indexed.Wariant)
	assert.Empty(t, n.Indexed.RodzajSadu)
	assert.Nil(t, n.Indexed.WatekWiny)
	assert.Equal(t, 2019, *n.Indexed.RokDecyzji)
}

func TestNormalize_MinimalAndUnknownVersion(t *testing.T) {
	n, err := Normalize("", FormData{FieldEmail: "a@b.pl"})
	require.NoError(t, err)
	assert.Nil(t, n.Income)
	assert.Empty(t, n.Children)

	_, err = Normalize("9.9", FormData{})
	assert.ErrorIs(t, err, ErrUnknownVersion)
}
