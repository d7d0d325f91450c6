// ABOUTME: Built-in service catalog used when the config does not define one
// ABOUTME: Springs, support, balance, tie-rod submenus plus budget and other-services descriptions

package catalog

import "github.com/2389/intake-gateway/internal/session"

// Default returns the stock suspension-shop catalog.
func Default() *Catalog {
	return &Catalog{
		// Off, an arch request hands off with only serviceType collected.
		CollectVehicle: true,
		Entries: []Entry{
			{
				Key:         "1",
				Label:       "Orçamento - Reforçar veículo",
				Kind:        KindDescription,
				ServiceType: "Orçamento - Reforçar veículo",
				Topic:       session.TopicBudget,
				Prompt:      "Por favor, descreva o que você precisa para reforçar seu veículo:",
			},
			{
				Key:      "2",
				Label:    "Molas (troca/arquear)",
				Kind:     KindSubmenu,
				Category: "springs",
				Title:    "SERVIÇO DE MOLAS",
				Prompt:   "O que você precisa?",
				Options: []Option{
					{Key: "1", Label: "Troca de mola", ServiceType: "Troca de mola", Track: session.TrackStandard},
					{Key: "2", Label: "Arquear mola", ServiceType: "Arquear mola", Immediate: true},
				},
			},
			{
				Key:      "3",
				Label:    "Suporte (troca/recuperação)",
				Kind:     KindSubmenu,
				Category: "support",
				Title:    "SERVIÇO DE SUPORTE",
				Prompt:   "Selecione a opção desejada:",
				Options: []Option{
					{Key: "1", Label: "Troca de suporte", ServiceType: "Troca de suporte", Track: session.TrackStandard},
					{Key: "2", Label: "Recuperação de suporte", ServiceType: "Recuperação de suporte", Track: session.TrackStandard},
				},
			},
			{
				Key:      "4",
				Label:    "Balança (troca/recuperação)",
				Kind:     KindSubmenu,
				Category: "balance",
				Title:    "SERVIÇO DE BALANÇA",
				Prompt:   "Selecione a opção desejada:",
				Options: []Option{
					{Key: "1", Label: "Troca de balança", ServiceType: "Troca de balança", Track: session.TrackNoLocation},
					{Key: "2", Label: "Recuperação de balança", ServiceType: "Recuperação de balança", Track: session.TrackNoLocation},
				},
			},
			{
				Key:      "5",
				Label:    "Tirante",
				Kind:     KindSubmenu,
				Category: "tie_rod",
				Title:    "SERVIÇO DE TIRANTE",
				Prompt:   "Selecione a opção desejada:",
				Options: []Option{
					{Key: "1", Label: "Troca de bucha", ServiceType: "Troca de bucha de tirante", Track: session.TrackTieRod},
					{Key: "2", Label: "Troca de tirante", ServiceType: "Troca de tirante", Track: session.TrackTieRod},
				},
			},
			{
				Key:         "6",
				Label:       "Outros serviços",
				Kind:        KindDescription,
				ServiceType: "Outros serviços",
				Topic:       session.TopicOther,
				Prompt:      "Não encontrou o que procurava?\n\nDescreva o serviço ou peça que você precisa:",
			},
		},
	}
}
