package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
	"github.com/ppiankov/metadag/internal/server"
)

var (
	submitTaskType     string
	submitSource       string
	submitCandidates   string
	submitFormat       string
	submitRemote       string
	submitBackendURL   string
	submitBackendModel string
	submitBackendKey   string
	submitSystemPrompt string
)

func init() {
	rootCmd.AddCommand(submitCmd)
	f := submitCmd.Flags()
	f.StringVar(&submitTaskType, "task-type", "", "Task type (default NL_REQUEST, MODEL_QUERY with --backend-url)")
	f.StringVar(&submitSource, "source", "cli", "Source tag recorded on the event")
	f.StringVar(&submitCandidates, "candidates", "", "JSON file with explicit candidates and weights")
	f.StringVarP(&submitFormat, "format", "f", "text", "Output format (text|json)")
	f.StringVar(&submitRemote, "remote", "", "Submit to a metadag gRPC server at host:port")
	f.StringVar(&submitBackendURL, "backend-url", "", "OpenAI-compatible chat completions URL; the reply is governed")
	f.StringVar(&submitBackendModel, "backend-model", "", "Backend model name")
	f.StringVar(&submitBackendKey, "backend-key-env", "METADAG_API_KEY", "Environment variable holding the backend API key")
	f.StringVar(&submitSystemPrompt, "system-prompt", "", "System prompt sent to the backend")
}

var submitCmd = &cobra.Command{
	Use:   "submit [text...]",
	Short: "Run text through the governance pipeline",
	Long: "Translates the text, arbitrates the candidate set, classifies the decision,\n" +
		"scores drift and appends a node to the ledger. Reads stdin when no text is given.",
	RunE: runSubmit,
}

// candidateFile is the --candidates document.
type candidateFile struct {
	Candidates []model.Candidate   `json:"candidates"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := checkFormat(submitFormat); err != nil {
		return err
	}
	text, err := inputText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	sub := pipeline.Submission{Text: text, TaskType: submitTaskType, Source: submitSource}
	if submitCandidates != "" {
		cf, err := readCandidateFile(submitCandidates)
		if err != nil {
			return err
		}
		sub.Candidates, sub.Weights = cf.Candidates, cf.Weights
	}

	ctx := cmd.Context()

	if submitBackendURL != "" {
		gen := backend.NewHTTP(backend.Config{
			APIURL:       submitBackendURL,
			APIKey:       os.Getenv(submitBackendKey),
			Model:        submitBackendModel,
			SystemPrompt: submitSystemPrompt,
			Timeout:      60 * time.Second,
		})
		sub = pipeline.Generated(ctx, gen, sub)
	}

	var out *pipeline.Outcome
	if submitRemote != "" {
		client, err := server.Dial(submitRemote)
		if err != nil {
			return err
		}
		defer client.Close()
		out, err = client.Submit(ctx, sub)
		if err != nil {
			return err
		}
	} else {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		out, err = a.engine.Process(ctx, sub)
		if err != nil {
			return err
		}
	}

	if submitFormat == "json" {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

// inputText joins args, or reads r when args are empty or a single "-".
func inputText(r io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func readCandidateFile(path string) (candidateFile, error) {
	var cf candidateFile
	data, err := os.ReadFile(path)
	if err != nil {
		return cf, fmt.Errorf("read candidates: %w", err)
	}
	if err := json.Unmarshal(data, &cf); err != nil {
		return cf, fmt.Errorf("parse candidates %s: %w", path, err)
	}
	return cf, nil
}
