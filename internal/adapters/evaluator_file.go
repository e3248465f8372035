package adapters

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"flakekit/internal/core"
	"flakekit/internal/ports"
	"flakekit/internal/types"
)

// ManifestName is the flake manifest expected at the root of a fetched
// source.
const ManifestName = "flake.yaml"

// ManifestEvaluator extracts flake metadata from a fetched source's
// manifest. Input declaration order is preserved, which the resolver
// relies on for deterministic traversal output.
type ManifestEvaluator struct{}

func NewManifestEvaluator() ManifestEvaluator {
	return ManifestEvaluator{}
}

type manifestDoc struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Epoch       int       `yaml:"epoch"`
	Inputs      yaml.Node `yaml:"inputs"`
}

type manifestInput struct {
	URI   string `yaml:"uri"`
	Flake *bool  `yaml:"flake"`
}

func (e ManifestEvaluator) Eval(ctx context.Context, src types.SourceInfo) (types.FlakeMetadata, error) {
	path := filepath.Join(src.StorePath, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.FlakeMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("source has no flake manifest: " + src.ResolvedRef.String()).
			WithCause(err)
	}
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.FlakeMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed flake manifest").
			WithCause(err)
	}
	if doc.ID == "" {
		return types.FlakeMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("flake manifest is missing an id")
	}

	meta := types.FlakeMetadata{
		ID:          doc.ID,
		Description: doc.Description,
		Epoch:       doc.Epoch,
	}
	inputs, err := parseManifestInputs(doc.Inputs)
	if err != nil {
		return types.FlakeMetadata{}, err
	}
	meta.Inputs = inputs
	return meta, nil
}

// parseManifestInputs walks the raw mapping node pairwise so declared
// order survives; a plain yaml map would shuffle it.
func parseManifestInputs(node yaml.Node) ([]types.DeclaredInput, error) {
	if node.Kind == 0 || node.Kind == yaml.ScalarNode && node.Value == "" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("flake manifest inputs must be a mapping")
	}
	var inputs []types.DeclaredInput
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		value := node.Content[i+1]

		var uri string
		isFlake := true
		switch value.Kind {
		case yaml.ScalarNode:
			uri = value.Value
		case yaml.MappingNode:
			var input manifestInput
			if err := value.Decode(&input); err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg("malformed input declaration: " + name).
					WithCause(err)
			}
			uri = input.URI
			if input.Flake != nil {
				isFlake = *input.Flake
			}
		default:
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("malformed input declaration: " + name)
		}

		ref, err := core.ParseFlakeRef(uri)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, types.DeclaredInput{Name: name, Ref: ref, Flake: isFlake})
	}
	return inputs, nil
}

var _ ports.EvaluatorPort = ManifestEvaluator{}
