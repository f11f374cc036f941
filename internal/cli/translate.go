package cli

import (
	"github.com/spf13/cobra"
)

var (
	translateTaskType string
	translateSource   string
	translateRecord   bool
)

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().StringVar(&translateTaskType, "task-type", "", "Task type (default NL_REQUEST)")
	translateCmd.Flags().StringVar(&translateSource, "source", "cli", "Source tag recorded on the event")
	translateCmd.Flags().BoolVar(&translateRecord, "record", false, "Append the event to the translation log and audit it")
}

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Print the structured event for text",
	Long: "Translates text into an event without arbitrating it. With --record the event\n" +
		"is appended to the translation log and a Context Translation audit entry is written.",
	RunE: runTranslate,
}

func runTranslate(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if !translateRecord {
		cfg, err := loadPolicy()
		if err != nil {
			return err
		}
		tr, err := cfg.BuildTranslator()
		if err != nil {
			return err
		}
		event, err := tr.Translate(text, translateTaskType, translateSource)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), event)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	event, err := a.engine.Translate(cmd.Context(), text, translateTaskType, translateSource, true)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), event)
}
