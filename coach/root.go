package coach

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/studymesh/studymesh/agent"
	"github.com/studymesh/studymesh/connector/convert"
	"github.com/studymesh/studymesh/connector/search"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/runner"
)

const rootInstruction = `You are the Learning Coach root agent.

For now, you only have **SummarizerAgent** available:
- Call the tool transfer_to_agent with {"agent_name": "SummarizerAgent"} whenever the learner asks for summaries, notes, key takeaways, or document conversions.
- Do not emit JSON or prose in those cases; use the actual function call so the handoff happens.
- If the request is outside summarization, politely explain that summarization is the only supported capability right now.

Later you will also gain:
- QuizAgent (to generate practice questions)
- FlashcardAgent (to create spaced-repetition flashcards)`

// Options configures the learning-coach assembly.
type Options struct {
	// Model powers every agent in the network. Required.
	Model model.Model
	// SearchEndpoint is the JSON search API; defaults to SEARCH_API_ENDPOINT.
	SearchEndpoint string
	// SearchAPIKey authenticates search calls; defaults to SEARCH_API_KEY.
	SearchAPIKey string
	// Converter gathers study material; defaults to the webpage converter.
	Converter convert.Converter
	// Logger receives structured runner logs.
	Logger logging.Logger
}

func resolveOptions(optFns []func(o *Options)) Options {
	opts := Options{
		SearchEndpoint: os.Getenv("SEARCH_API_ENDPOINT"),
		SearchAPIKey:   os.Getenv("SEARCH_API_KEY"),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Converter == nil {
		opts.Converter = convert.NewWebpageConverter()
	}
	return opts
}

// BuildRootAgent wires a fresh learning-coach delegation graph: the root
// delegates to a cloned SummarizerAgent so each root instance owns an
// isolated subtree while sharing the underlying connectors. The assembled
// tree is validated before it is returned.
func BuildRootAgent(optFns ...func(o *Options)) (*agent.ModelAgent, error) {
	opts := resolveOptions(optFns)
	if opts.Model == nil {
		return nil, fmt.Errorf("coach: Model is required")
	}

	searchClient := search.NewClient(opts.SearchEndpoint, func(o *search.Options) {
		o.APIKey = opts.SearchAPIKey
	})
	searchTool := search.NewSearchTool(searchClient, NewSearchNormalizer())
	searchAgent := NewSearchAgent(opts.Model, searchTool)

	convertTool := convert.NewWebpageTool(opts.Converter, NewConversionNormalizer())
	summarizer := NewSummarizerAgent(opts.Model, convertTool, searchAgent)

	root := agent.NewModelAgent("LearningCoachRoot", opts.Model, func(o *agent.ModelAgentOptions) {
		o.Description = "Root agent that orchestrates learning-coach sub-agents."
		o.Instruction = agent.NewInstructionFromText(rootInstruction)
	})

	if err := root.SetSubAgents(agent.CloneSpec(summarizer)); err != nil {
		return nil, err
	}
	if err := agent.ValidateTree(root); err != nil {
		return nil, err
	}

	return root, nil
}

var (
	defaultOnce sync.Once
	defaultRoot *agent.ModelAgent
	defaultErr  error
)

// Default returns the process-wide root agent, constructed exactly once with
// the options of the first call. Subsequent calls ignore their options.
func Default(optFns ...func(o *Options)) (*agent.ModelAgent, error) {
	defaultOnce.Do(func() {
		defaultRoot, defaultErr = BuildRootAgent(optFns...)
	})
	return defaultRoot, defaultErr
}

// RunSummary runs a single turn against a fresh learning-coach network and
// returns the decoded terminal payload. Convenience for local testing.
func RunSummary(ctx context.Context, text string, optFns ...func(o *Options)) (map[string]any, error) {
	opts := resolveOptions(optFns)

	root, err := BuildRootAgent(optFns...)
	if err != nil {
		return nil, err
	}

	r := runner.New(root, func(o *runner.Options) {
		o.Logger = opts.Logger
	})

	return r.RunTurn(ctx, text)
}
