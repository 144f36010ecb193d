package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimatrix/alimatrix/internal/form"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestNew_CompilesEveryStep(t *testing.T) {
	v := newValidator(t)
	for _, s := range form.Steps() {
		assert.Contains(t, v.schemas, s.ID)
	}
}

func TestValidate_UnknownStep(t *testing.T) {
	_, err := newValidator(t).Validate("nie-ma", form.FormData{})
	assert.Error(t, err)
}

func TestValidate_EmptyRequiredFieldYieldsOneError(t *testing.T) {
	res, err := newValidator(t).Validate(form.StepWyborSciezki, form.FormData{"sciezkaWybor": "  "})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, map[string]string{"sciezkaWybor": msgRequired}, res.Errors)
}

func TestValidate_EnumAndStrayKeys(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepWyborSciezki, form.FormData{"sciezkaWybor": "ustalone", "obce": 1})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.NotContains(t, res.Data, "obce")

	res, err = v.Validate(form.StepWyborSciezki, form.FormData{"sciezkaWybor": "moze"})
	require.NoError(t, err)
	assert.Equal(t, msgChoice, res.Errors["sciezkaWybor"])
}

func TestValidate_OtherBasisNeedsDescription(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepPodstawa, form.FormData{"podstawaUstalen": "inne"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgRequired, res.Errors["podstawaUstalenInne"])

	res, err = v.Validate(form.StepPodstawa, form.FormData{
		"podstawaUstalen": "inne", "podstawaUstalenInne": "ustalenia ustne z dziadkami",
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)

	res, err = v.Validate(form.StepPodstawa, form.FormData{"podstawaUstalen": "wyrok"})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
}

func TestValidate_ChildrenNumericStrings(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepDzieci, form.FormData{"dzieci": []any{
		map[string]any{"wiek": "7", "plec": "M", "specjalnePotrzeby": false},
	}})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
	child := res.Data["dzieci"].([]any)[0].(map[string]any)
	assert.Equal(t, 7.0, child["wiek"])

	res, err = v.Validate(form.StepDzieci, form.FormData{"dzieci": []any{
		map[string]any{"wiek": "", "plec": "M", "specjalnePotrzeby": false},
		map[string]any{"wiek": "siedem", "plec": "K", "specjalnePotrzeby": true},
		map[string]any{"wiek": 40, "plec": "K", "specjalnePotrzeby": false},
	}})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgRequired, res.Errors["dzieci.0.wiek"], "empty string is absent, not zero")
	assert.Equal(t, msgType, res.Errors["dzieci.1.wiek"])
	assert.Equal(t, msgRequired, res.Errors["dzieci.1.opisSpecjalnychPotrzeb"])
	assert.Equal(t, msgRange, res.Errors["dzieci.2.wiek"])
}

func TestValidate_ChildrenCount(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepDzieci, form.FormData{"dzieci": []any{}})
	require.NoError(t, err)
	assert.False(t, res.Valid)

	many := make([]any, 11)
	for i := range many {
		many[i] = map[string]any{"wiek": 1, "plec": "K", "specjalnePotrzeby": false}
	}
	res, err = v.Validate(form.StepDzieci, form.FormData{"dzieci": many})
	require.NoError(t, err)
	assert.Equal(t, msgItems, res.Errors["dzieci"])
}

func TestValidate_Income(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepDochody, form.FormData{
		"wlasneDochodyNetto": "4500.50", "drugiRodzicDochodyNetto": 0,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, 4500.5, res.Data["wlasneDochodyNetto"])

	res, err = v.Validate(form.StepDochody, form.FormData{
		"wlasneDochodyNetto": -1, "drugiRodzicDochodyNetto": "",
	})
	require.NoError(t, err)
	assert.Equal(t, msgRange, res.Errors["wlasneDochodyNetto"])
	assert.Equal(t, msgRequired, res.Errors["drugiRodzicDochodyNetto"])
}

func TestValidate_CourtYearBounds(t *testing.T) {
	v := newValidator(t)
	base := form.FormData{"rodzajSadu": "okregowy", "apelacja": "krakowska", "watekWiny": "tak"}

	res, err := v.Validate(form.StepPostepowanieSadowe, base.Merge(form.FormData{"rokDecyzji": "1989"}))
	require.NoError(t, err)
	assert.Equal(t, msgRange, res.Errors["rokDecyzji"])

	res, err = v.Validate(form.StepPostepowanieSadowe, base.Merge(form.FormData{"rokDecyzji": 2020}))
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
}

func TestValidate_Contact(t *testing.T) {
	v := newValidator(t)

	res, err := v.Validate(form.StepKontakt, form.FormData{
		"contactEmail": "nie-email", "zgodaPrzetwarzanie": false, "zgodaKontakt": true,
	})
	require.NoError(t, err)
	assert.Equal(t, msgEmail, res.Errors["contactEmail"])
	assert.Equal(t, msgConsent, res.Errors["zgodaPrzetwarzanie"])

	res, err = v.Validate(form.StepKontakt, form.FormData{
		"contactEmail": "anna@example.pl", "zgodaPrzetwarzanie": true, "zgodaKontakt": false,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateSubmission_MinimalContactOnly(t *testing.T) {
	res, err := newValidator(t).ValidateSubmission(form.FormData{
		"contactEmail": "user@example.com", "zgodaPrzetwarzanie": true, "zgodaKontakt": false,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
}

func TestValidateSubmission_PresentSectionsAreChecked(t *testing.T) {
	res, err := newValidator(t).ValidateSubmission(form.FormData{
		"contactEmail": "user@example.com", "zgodaPrzetwarzanie": true, "zgodaKontakt": false,
		"wiekRodzica": "12",
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgRange, res.Errors["wiekRodzica"])
	assert.Equal(t, msgRequired, res.Errors["rola"])
}

func TestValidateSubmission_DropsUnownedKeys(t *testing.T) {
	res, err := newValidator(t).ValidateSubmission(form.FormData{
		"contactEmail": "user@example.com", "zgodaPrzetwarzanie": true, "zgodaKontakt": false,
		"sciezkaWybor": "ustalone", "wariantPostepu": "court",
		"isAdmin": true, "extra": map[string]any{"x": 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
	assert.NotContains(t, res.Data, "isAdmin")
	assert.NotContains(t, res.Data, "extra")
	assert.Equal(t, "court", res.Data["wariantPostepu"])

	res, err = newValidator(t).ValidateSubmission(form.FormData{
		"contactEmail": "user@example.com", "zgodaPrzetwarzanie": true, "zgodaKontakt": false,
		"wariantPostepu": "whatever",
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Data, "wariantPostepu")
}

func TestValidateSubmission_MissingContact(t *testing.T) {
	res, err := newValidator(t).ValidateSubmission(form.FormData{"sciezkaWybor": "nieustalone"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, msgRequired, res.Errors["contactEmail"])
}

func TestPrepare_DoesNotMutateInput(t *testing.T) {
	in := form.FormData{"dzieci": []any{map[string]any{"wiek": "3", "plec": ""}}}
	out := prepare(in, []string{"dzieci.*.wiek"})

	orig := in["dzieci"].([]any)[0].(map[string]any)
	assert.Equal(t, "3", orig["wiek"])
	assert.Contains(t, orig, "plec")

	got := out["dzieci"].([]any)[0].(map[string]any)
	assert.Equal(t, 3.0, got["wiek"])
	assert.NotContains(t, got, "plec")
}
