package validation

import (
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

const (
	msgRequired = "To pole jest wymagane."
	msgChoice   = "Wybierz jedną z dostępnych opcji."
	msgConsent  = "Ta zgoda jest wymagana."
	msgType     = "Nieprawidłowy format wartości."
	msgRange    = "Wartość spoza dozwolonego zakresu."
	msgItems    = "Nieprawidłowa liczba pozycji."
	msgLength   = "Nieprawidłowa długość tekstu."
	msgEmail    = "Podaj poprawny adres e-mail."
	msgInvalid  = "Nieprawidłowa wartość."
)

func message(k jsonschema.ErrorKind) string {
	switch x := k.(type) {
	case *kind.Enum:
		return msgChoice
	case *kind.Const:
		if b, ok := x.Want.(bool); ok && b {
			return msgConsent
		}
		return msgChoice
	case *kind.Type:
		return msgType
	case *kind.Minimum, *kind.Maximum, *kind.ExclusiveMinimum, *kind.ExclusiveMaximum:
		return msgRange
	case *kind.MinItems, *kind.MaxItems:
		return msgItems
	case *kind.MinLength, *kind.MaxLength:
		return msgLength
	case *kind.Format:
		if x.Want == "email" {
			return msgEmail
		}
		return msgType
	}
	return msgInvalid
}
