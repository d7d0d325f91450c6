// ABOUTME: Renders collected intake data as a bullet list
// ABOUTME: Shared by the customer confirmation and the operator hand-off notice

package messages

import (
	"strings"

	"github.com/2389/intake-gateway/internal/session"
)

var fieldLabels = map[session.Field]string{
	session.FieldServiceType:  "Serviço",
	session.FieldVehicleModel: "Veículo",
	session.FieldVehicleYear:  "Ano",
	session.FieldPartName:     "Peça",
	session.FieldTieRodType:   "Tipo",
	session.FieldSize:         "Tamanho",
	session.FieldLocation:     "Localização",
	session.FieldQuantity:     "Quantidade",
	session.FieldDescription:  "Descrição",
	session.FieldHasPhoto:     "Foto",
}

// FieldLabel returns the pt-BR label for a field.
func FieldLabel(f session.Field) string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return f.Key()
}

// FieldValue renders an entry's value for display.
func FieldValue(e session.Entry) string {
	switch v := e.Value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "Enviada"
		}
		return "Não enviada"
	}
	return ""
}

// SummaryLines renders each collected field as "• Label: value", in field order.
func SummaryLines(data session.Intake) []string {
	entries := data.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = "• " + FieldLabel(e.Field) + ": " + FieldValue(e)
	}
	return lines
}

// Summary renders the customer's request summary. It is empty when nothing
// was collected.
func (t *Templates) Summary(data session.Intake) string {
	lines := SummaryLines(data)
	if len(lines) == 0 {
		return ""
	}
	return Bold("Resumo da sua solicitação:") + "\n\n" + strings.Join(lines, "\n")
}
