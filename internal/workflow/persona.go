package workflow

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed personas.toml
var defaultPersonas string

// Persona is the instruction set of one worker.
type Persona struct {
	Name        string `toml:"name"`
	Label       string `toml:"label"`
	OutputKey   string `toml:"output_key"`
	Instruction string `toml:"instruction"`
}

// Personas is the full worker line-up: the analysts in declaration order
// and the judge that synthesizes them.
type Personas struct {
	Analysts []Persona `toml:"analyst"`
	Judge    Persona   `toml:"judge"`
}

// LoadPersonas reads personas from path, or the built-in set when path is
// empty. A file replaces the built-in set entirely.
func LoadPersonas(path string) (*Personas, error) {
	data := defaultPersonas
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading personas: %w", err)
		}
		data = string(raw)
	}

	var p Personas
	md, err := toml.Decode(data, &p)
	if err != nil {
		return nil, fmt.Errorf("decoding personas: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding personas: unknown key %s", undecoded[0])
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Personas) validate() error {
	if len(p.Analysts) == 0 {
		return errors.New("personas: at least one analyst is required")
	}
	seen := make(map[string]bool, len(p.Analysts)+1)
	for _, a := range append(append([]Persona{}, p.Analysts...), p.Judge) {
		if strings.TrimSpace(a.Name) == "" {
			return errors.New("personas: every persona needs a name")
		}
		if seen[a.Name] {
			return fmt.Errorf("personas: duplicate name %q", a.Name)
		}
		seen[a.Name] = true
		if strings.TrimSpace(a.Instruction) == "" {
			return fmt.Errorf("personas: %s has no instruction", a.Name)
		}
	}
	return nil
}

// Completer is the model call a persona worker delegates to.
// *reasoning.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// PersonaWorker runs one persona against a Completer.
type PersonaWorker struct {
	persona Persona
	model   Completer
}

func NewPersonaWorker(p Persona, model Completer) *PersonaWorker {
	return &PersonaWorker{persona: p, model: model}
}

// Name returns the label used to mark this worker's section.
func (w *PersonaWorker) Name() string {
	if w.persona.Label != "" {
		return w.persona.Label
	}
	return w.persona.Name
}

func (w *PersonaWorker) Run(ctx context.Context, input string) (string, error) {
	return w.model.Complete(ctx, strings.TrimSpace(w.persona.Instruction), input)
}

// Workers builds the analysts and the judge for p.
func (p *Personas) Workers(model Completer) (analysts []Worker, judge Worker) {
	for _, a := range p.Analysts {
		analysts = append(analysts, NewPersonaWorker(a, model))
	}
	return analysts, NewPersonaWorker(p.Judge, model)
}
