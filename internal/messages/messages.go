// ABOUTME: Customer-facing text templates built from company settings and the catalog
// ABOUTME: Each method returns one outbound chat message

package messages

import (
	"fmt"
	"strings"

	"github.com/2389/intake-gateway/internal/catalog"
)

// Main menu keys.
const (
	KeyServices  = "1"
	KeySales     = "2"
	KeyFinancial = "3"
	KeyHuman     = "4"
)

// Separator frames the main menu.
const Separator = "\n━━━━━━━━━━━━━━━━━━\n"

// Choice is one numbered menu line.
type Choice struct {
	Key   string
	Label string
}

// MainMenuChoices are the options of the main menu.
var MainMenuChoices = []Choice{
	{KeyServices, "Serviços"},
	{KeySales, "Vendas"},
	{KeyFinancial, "Financeiro"},
	{KeyHuman, "Falar com atendente"},
}

// TieRodTypes are the answers accepted when asking the tie-rod type.
var TieRodTypes = []Choice{
	{"1", "Fixo"},
	{"2", "Regulagem"},
}

// LookupChoice returns the label for key.
func LookupChoice(choices []Choice, key string) (string, bool) {
	for _, c := range choices {
		if c.Key == key {
			return c.Label, true
		}
	}
	return "", false
}

// Bold wraps text in chat bold markers.
func Bold(text string) string { return "*" + text + "*" }

// FormatMenu renders choices one per line as "*key* - label".
func FormatMenu(choices []Choice) string {
	lines := make([]string, len(choices))
	for i, c := range choices {
		lines[i] = Bold(c.Key) + " - " + c.Label
	}
	return strings.Join(lines, "\n")
}

// Company is the business information shown to customers.
type Company struct {
	Name                  string
	Address               string
	PaymentMethods        string
	BudgetResponseMinutes int
}

// Templates renders messages for one company and catalog.
type Templates struct {
	company      Company
	catalog      *catalog.Catalog
	resetKeyword string
	skipKeyword  string
}

// New creates templates. resetKeyword and skipKeyword are quoted back to the
// customer in prompts.
func New(company Company, cat *catalog.Catalog, resetKeyword, skipKeyword string) *Templates {
	return &Templates{
		company:      company,
		catalog:      cat,
		resetKeyword: resetKeyword,
		skipKeyword:  skipKeyword,
	}
}

// Welcome greets a customer at the start of a conversation.
func (t *Templates) Welcome() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá! Seja bem-vindo(a) à %s!\n\n", Bold(t.company.Name))
	b.WriteString("Somos especializados em serviços de suspensão automotiva, oferecendo soluções completas para seu veículo.")
	if t.company.Address != "" {
		fmt.Fprintf(&b, "\n\n%s %s", Bold("Localização:"), t.company.Address)
	}
	if t.company.PaymentMethods != "" {
		fmt.Fprintf(&b, "\n\n%s\n%s", Bold("Formas de pagamento:"), t.company.PaymentMethods)
	}
	return b.String()
}

// OutsideHours tells the customer nobody is attending right now. schedule is
// the rendered weekly table and next the next-opening phrase.
func (t *Templates) OutsideHours(schedule, next string) string {
	var b strings.Builder
	b.WriteString("No momento estamos fora do horário de atendimento.\n\n")
	fmt.Fprintf(&b, "%s\n%s\n\n", Bold("Horário de funcionamento:"), schedule)
	if next != "" {
		fmt.Fprintf(&b, "Retornaremos seu contato %s.\n\n", Bold(next))
	}
	b.WriteString("Caso prefira, deixe sua mensagem que responderemos assim que possível!")
	return b.String()
}

// MainMenu lists the top-level branches.
func (t *Templates) MainMenu() string {
	return Separator + "Como podemos ajudá-lo(a) hoje?\n\n" + FormatMenu(MainMenuChoices) + Separator
}

// ServicesMenu lists the catalog entries plus the back option.
func (t *Templates) ServicesMenu() string {
	choices := make([]Choice, 0, len(t.catalog.Entries)+1)
	for _, e := range t.catalog.Entries {
		choices = append(choices, Choice{e.Key, e.Label})
	}
	choices = append(choices, Choice{catalog.BackKey, "Voltar ao menu principal"})

	return Bold("SERVIÇOS") + "\n\nSelecione o serviço desejado:\n\n" + FormatMenu(choices)
}

// Submenu lists the options of a catalog category plus the back option.
func (t *Templates) Submenu(e catalog.Entry) string {
	choices := make([]Choice, 0, len(e.Options)+1)
	for _, o := range e.Options {
		choices = append(choices, Choice{o.Key, o.Label})
	}
	choices = append(choices, Choice{catalog.BackKey, "Voltar"})

	title := e.Title
	if title == "" {
		title = strings.ToUpper(e.Label)
	}
	prompt := e.Prompt
	if prompt == "" {
		prompt = "Selecione a opção desejada:"
	}
	return Bold(title) + "\n\n" + prompt + "\n\n" + FormatMenu(choices)
}

func (t *Templates) VehicleModel() string {
	return "Por favor, informe o " + Bold("modelo do veículo") + ":\n\nExemplo: Fiat Uno, VW Gol, Chevrolet Onix, etc."
}

func (t *Templates) VehicleYear() string {
	return "Qual o " + Bold("ano do veículo") + "?\n\nExemplo: 2015, 2020, etc."
}

func (t *Templates) PartName() string {
	return "Por favor, informe o " + Bold("nome da peça") + ":"
}

func (t *Templates) Location() string {
	return "Informe a " + Bold("localização") + " da peça:\n\nExemplos:\n• Dianteiro esquerdo\n• Traseiro direito\n• Dianteiro\n• Traseiro"
}

func (t *Templates) Quantity() string {
	return "Qual a " + Bold("quantidade") + " necessária?"
}

func (t *Templates) Photo() string {
	return "Por favor, envie uma " + Bold("foto") + " da peça ou do local onde será instalada.\n\n" +
		"Se não tiver foto no momento, pode digitar " + Bold(`"`+t.skipKeyword+`"`) + " para continuar."
}

func (t *Templates) TieRodType() string {
	return "Qual o " + Bold("tipo") + " do tirante?\n\n" + FormatMenu(TieRodTypes)
}

func (t *Templates) Size() string {
	return "Informe o " + Bold("tamanho") + " do tirante:"
}

// Financial opens the financial branch.
func (t *Templates) Financial() string {
	return Bold("FINANCEIRO") + "\n\nComo podemos ajudar?\n\n" +
		"• Segunda via de boleto\n• Segunda via de nota fiscal\n• Outras questões financeiras\n\n" +
		"Por favor, descreva sua necessidade:"
}

// DataReceived acknowledges a collected answer.
func (t *Templates) DataReceived() string { return "Informação registrada!" }

func (t *Templates) PhotoReceived() string { return "Foto recebida!" }

func (t *Templates) PhotoSkipped() string { return "Ok, continuando sem foto." }

// PhotoInvalid is sent when the photo step gets neither media nor the skip keyword.
func (t *Templates) PhotoInvalid() string {
	return `Por favor, envie uma foto ou digite "` + t.skipKeyword + `" para continuar.`
}

// RequestReceived confirms a finished intake and promises a reply time.
func (t *Templates) RequestReceived() string {
	minutes := fmt.Sprintf("%d minutos", t.company.BudgetResponseMinutes)
	return "Perfeito! Recebemos sua solicitação de orçamento.\n\n" +
		"Nossa equipe analisará as informações e retornaremos com o orçamento em até " + Bold(minutes) + ".\n\n" +
		"Aguarde nosso contato!"
}

// FinancialReceived confirms a financial request.
func (t *Templates) FinancialReceived() string {
	return "✅ Sua solicitação financeira foi recebida!\n\n" +
		"Nossa equipe do financeiro entrará em contato em breve para atendê-lo."
}

// TransferringToHuman confirms a direct request for an attendant.
func (t *Templates) TransferringToHuman() string {
	return "Sua solicitação foi encaminhada para nossa equipe de atendimento.\n\n" +
		"Um de nossos especialistas entrará em contato em breve!"
}

// AlreadyForwarded answers messages sent while waiting for an attendant.
func (t *Templates) AlreadyForwarded() string {
	return "Sua solicitação já foi encaminhada para nossa equipe. Aguarde o contato! 📞"
}

func (t *Templates) InvalidOption() string {
	return "Opção inválida. Por favor, escolha uma das opções disponíveis no menu."
}

func (t *Templates) InvalidInput() string {
	return "Entrada inválida. Por favor, tente novamente."
}

// Apology is sent when processing a message failed unexpectedly.
func (t *Templates) Apology() string {
	return "Desculpe, ocorreu um erro. Por favor, tente novamente ou digite " +
		Bold(`"`+t.resetKeyword+`"`) + " para voltar ao início."
}
