package handlers

import (
	"net/http"

	"github.com/alimatrix/alimatrix/internal/services"
)

const (
	msgSubmitted    = "Dziękujemy! Formularz został wysłany."
	msgBadRequest   = "Nieprawidłowe żądanie."
	msgInternal     = "Wystąpił błąd. Spróbuj ponownie za chwilę."
	msgSaveFailed   = "Nie udało się zapisać odpowiedzi. Spróbuj ponownie."
	msgInvalidStep  = "Popraw zaznaczone pola."
	msgUnauthorized = "Brak dostępu."
)

type status struct {
	code int
	text string
}

// submitStatus maps every refusal kind to a status code and the message
// shown to the user.
var submitStatus = map[services.Kind]status{
	services.KindRateLimited:  {http.StatusTooManyRequests, "Zbyt wiele prób. Spróbuj ponownie za chwilę."},
	services.KindDebounced:    {http.StatusTooManyRequests, "Formularz jest już wysyłany. Poczekaj chwilę."},
	services.KindTokenMissing: {http.StatusUnauthorized, "Brak tokenu bezpieczeństwa. Odśwież stronę."},
	services.KindTokenInvalid: {http.StatusForbidden, "Token bezpieczeństwa wygasł. Odśwież stronę."},
	services.KindMissingField: {http.StatusBadRequest, "Uzupełnij wymagane pola."},
	services.KindInvalidEmail: {http.StatusBadRequest, "Podaj poprawny adres e-mail."},
	services.KindValidation:   {http.StatusBadRequest, "Formularz zawiera błędy."},
	services.KindDuplicate:    {http.StatusConflict, "Ten adres e-mail został już użyty. Podaj inny adres."},
	services.KindPersistence:  {http.StatusInternalServerError, msgInternal},
}

func statusFor(k services.Kind) status {
	if s, ok := submitStatus[k]; ok {
		return s
	}
	return status{http.StatusInternalServerError, msgInternal}
}
