package quiz

import (
	"fmt"
	"slices"
)

// Option is one selectable answer of a step.
type Option struct {
	ID    string `koanf:"id"    json:"id"`
	Label string `koanf:"label" json:"label"`
}

// Step is one question of the quiz.
type Step struct {
	ID       int      `koanf:"id"       json:"id"`
	Question string   `koanf:"question" json:"question"`
	Context  string   `koanf:"context"  json:"context"`
	Options  []Option `koanf:"options"  json:"options"`
}

// Catalog is the ordered list of steps. Step n of the machine is Catalog[n-1].
type Catalog []Step

// Validate checks that the catalog can drive a machine.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidCatalog)
	}
	for i, step := range c {
		if len(step.Options) == 0 {
			return fmt.Errorf("%w: step %d has no options", ErrInvalidCatalog, i+1)
		}
		ids := make([]string, 0, len(step.Options))
		for _, opt := range step.Options {
			if opt.ID == "" {
				return fmt.Errorf("%w: step %d has an option without id", ErrInvalidCatalog, i+1)
			}
			if slices.Contains(ids, opt.ID) {
				return fmt.Errorf("%w: step %d repeats option %q", ErrInvalidCatalog, i+1, opt.ID)
			}
			ids = append(ids, opt.ID)
		}
	}
	return nil
}

// Option returns the option with id on the given 1-indexed step.
func (c Catalog) Option(step int, id string) (Option, bool) {
	if step < 1 || step > len(c) {
		return Option{}, false
	}
	for _, opt := range c[step-1].Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// DefaultCatalog returns the behavioral assessment shown to applicants.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			ID:       1,
			Question: "Ao receber orientações sobre procedimentos da escola, você:",
			Context:  "As rotinas escolares exigem que os colaboradores sigam orientações pedagógicas e administrativas com atenção.",
			Options: []Option{
				{ID: "atencao", Label: "Presta atenção e pergunta se tem dúvida"},
				{ID: "pratica", Label: "Prefere aprender na prática"},
				{ID: "anota", Label: "Anota tudo e segue exatamente"},
				{ID: "escuta", Label: "Escuta e tenta lembrar depois"},
			},
		},
		{
			ID:       2,
			Question: "Caso seja aprovada, você estaria disposta a passar pelo treinamento gratuito do programa antes do início?",
			Context:  "O treinamento é oferecido gratuitamente e prepara o colaborador para atuar com segurança nas atividades escolares.",
			Options: []Option{
				{ID: "depende-carga", Label: "Depende da carga do curso"},
				{ID: "sim-certeza", Label: "Sim, com certeza"},
				{ID: "direto-trabalho", Label: "Prefiro começar direto no trabalho"},
				{ID: "sim-horario", Label: "Sim, se for em horário acessível"},
			},
		},
		{
			ID:       3,
			Question: "Você se vê contribuindo ativamente em um ambiente escolar com professores, funcionários e gestores?",
			Context:  "As equipes das escolas são compostas por profissionais de diversas áreas, trabalhando juntos pelo desenvolvimento dos alunos.",
			Options: []Option{
				{ID: "depende-equipe", Label: "Dependeria da equipe"},
				{ID: "sim-acostumada", Label: "Sim, já estou acostumada"},
				{ID: "nunca-trabalhei", Label: "Nunca trabalhei em ambiente assim"},
				{ID: "sim-comunicacao", Label: "Sim, com boa comunicação"},
			},
		},
		{
			ID:       4,
			Question: "Você acredita que, com apoio e treinamento, pode se adaptar bem às rotinas escolares?",
			Context:  "O programa Escolas Conectadas oferece capacitação gratuita para todos os colaboradores, preparando-os para as funções nas escolas públicas.",
			Options: []Option{
				{ID: "talvez-funcao", Label: "Talvez, dependendo da função"},
				{ID: "sim-aprendo", Label: "Sim, aprendo rápido com orientação"},
				{ID: "receio-mudancas", Label: "Tenho receio com mudanças"},
				{ID: "sim-inicio-explicado", Label: "Sim, desde que tenha um início bem explicado"},
			},
		},
	}
}
