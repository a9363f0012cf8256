package pipeline

import "github.com/lehigh-university-libraries/docgeo/pkg/providers"

// Structured is the DocAI-like document built from a batch
type Structured struct {
	Documents []StructuredDocument `json:"documents" yaml:"documents"`
}

type StructuredDocument struct {
	Properties []Property    `json:"properties" yaml:"properties"`
	Pages      []ElementPage `json:"pages" yaml:"pages"`
	Errors     []PageFailure `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type Property struct {
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

type Metadata struct {
	MetaDataMap MetaDataMap `json:"metaDataMap" yaml:"metaDataMap"`
}

type MetaDataMap struct {
	Generator string `json:"generator" yaml:"generator"`
	Engine    string `json:"engine" yaml:"engine"`
	PSM       string `json:"psm" yaml:"psm"`
	Pages     int    `json:"pages" yaml:"pages"`
}

// BuildStructured wraps a batch as a single document whose metadata names
// the generator, engine and page segmentation mode.
func BuildStructured(batch *Batch, opts Options) *Structured {
	engine := ""
	if opts.Engine != nil {
		engine = opts.Engine.Name()
	}
	return &Structured{
		Documents: []StructuredDocument{
			{
				Properties: []Property{
					{
						Metadata: Metadata{
							MetaDataMap: MetaDataMap{
								Generator: Generator,
								Engine:    engine,
								PSM:       providers.PSMLabel(opts.Config.EngineConfig),
								Pages:     len(batch.Pages),
							},
						},
					},
				},
				Pages:  batch.Pages,
				Errors: batch.Failed,
			},
		},
	}
}
