// ABOUTME: Tests for customer-facing message templates
// ABOUTME: Checks menus follow the catalog and summaries follow field order

package messages

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/catalog"
	"github.com/2389/intake-gateway/internal/session"
)

func testTemplates() *Templates {
	return New(Company{
		Name:                  "Molas Tágua",
		Address:               "Rua das Molas, 100",
		PaymentMethods:        "Pix, cartão",
		BudgetResponseMinutes: 45,
	}, catalog.Default(), "menu", "pular")
}

func TestFormatMenu(t *testing.T) {
	got := FormatMenu([]Choice{{"1", "Um"}, {"0", "Voltar"}})
	assert.Equal(t, "*1* - Um\n*0* - Voltar", got)
}

func TestLookupChoice(t *testing.T) {
	label, ok := LookupChoice(TieRodTypes, "2")
	assert.True(t, ok)
	assert.Equal(t, "Regulagem", label)

	_, ok = LookupChoice(TieRodTypes, "3")
	assert.False(t, ok)
}

func TestWelcome(t *testing.T) {
	tpl := testTemplates()
	w := tpl.Welcome()
	assert.Contains(t, w, "*Molas Tágua*")
	assert.Contains(t, w, "*Localização:* Rua das Molas, 100")
	assert.Contains(t, w, "Pix, cartão")

	bare := New(Company{Name: "X"}, catalog.Default(), "menu", "pular")
	assert.NotContains(t, bare.Welcome(), "Localização")
}

func TestOutsideHours(t *testing.T) {
	tpl := testTemplates()
	got := tpl.OutsideHours("Segunda a Sexta: 08:00 às 17:00", "segunda-feira às 08:00")
	assert.Contains(t, got, "fora do horário")
	assert.Contains(t, got, "Segunda a Sexta: 08:00 às 17:00")
	assert.Contains(t, got, "*segunda-feira às 08:00*")
}

func TestMainMenu(t *testing.T) {
	m := testTemplates().MainMenu()
	assert.True(t, strings.HasPrefix(m, Separator))
	assert.True(t, strings.HasSuffix(m, Separator))
	assert.Contains(t, m, "*1* - Serviços")
	assert.Contains(t, m, "*4* - Falar com atendente")
}

func TestServicesMenu_FollowsCatalog(t *testing.T) {
	m := testTemplates().ServicesMenu()
	assert.Contains(t, m, "*2* - Molas (troca/arquear)")
	assert.Contains(t, m, "*6* - Outros serviços")
	assert.True(t, strings.HasSuffix(m, "*0* - Voltar ao menu principal"))
}

func TestSubmenu(t *testing.T) {
	tpl := testTemplates()
	springs, ok := catalog.Default().Category("springs")
	require.True(t, ok)

	got := tpl.Submenu(springs)
	assert.Equal(t, "*SERVIÇO DE MOLAS*\n\nO que você precisa?\n\n*1* - Troca de mola\n*2* - Arquear mola\n*0* - Voltar", got)

	untitled := catalog.Entry{Label: "Freios", Options: []catalog.Option{{Key: "1", Label: "Pastilha"}}}
	assert.True(t, strings.HasPrefix(tpl.Submenu(untitled), "*FREIOS*\n\nSelecione a opção desejada:"))
}

func TestPrompts_QuoteKeywords(t *testing.T) {
	tpl := testTemplates()
	assert.Contains(t, tpl.Photo(), `*"pular"*`)
	assert.Contains(t, tpl.PhotoInvalid(), `"pular"`)
	assert.Contains(t, tpl.Apology(), `*"menu"*`)
	assert.Contains(t, tpl.RequestReceived(), "*45 minutos*")
	assert.Equal(t, "Por favor, informe o *nome da peça*:", tpl.PartName())
}

func TestSummary(t *testing.T) {
	now := time.Now()
	s := session.New("c1", now)
	require.NoError(t, s.SetText(session.FieldQuantity, "2", now))
	require.NoError(t, s.SetText(session.FieldServiceType, "Troca de mola", now))
	require.NoError(t, s.SetText(session.FieldVehicleModel, "Fiat Uno", now))
	s.SkipPhoto(now)

	got := testTemplates().Summary(s.Data)
	assert.Equal(t, "*Resumo da sua solicitação:*\n\n"+
		"• Serviço: Troca de mola\n"+
		"• Veículo: Fiat Uno\n"+
		"• Quantidade: 2\n"+
		"• Foto: Não enviada", got)
}

func TestSummary_Empty(t *testing.T) {
	assert.Empty(t, testTemplates().Summary(session.Intake{}))
}
