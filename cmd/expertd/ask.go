package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dominicdesy/intelia-expert/internal/orchestrator"
)

var (
	askConversationID string
	askLanguage       string
	askJSON           bool
)

func init() {
	askCmd.Flags().StringVar(&askConversationID, "conversation", "", "conversation id (default: a new one)")
	askCmd.Flags().StringVar(&askLanguage, "language", "", "answer language: fr, en or es (default: configured language)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print full responses as JSON")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask questions from the terminal",
	Long: `Ask questions without starting the HTTP server.

With a question argument, prints one answer and exits. Without one, reads
questions line by line from stdin until EOF. When an answer asks for more
details, the next line is sent as the clarification reply.

Examples:
  # One question
  expertd ask "Poids des Ross 308 mâles à 21 jours ?"

  # Interactive session in English
  expertd ask --language en`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	orch, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	s := &askSession{
		orch:           orch,
		out:            cmd.OutOrStdout(),
		conversationID: askConversationID,
		language:       askLanguage,
		json:           askJSON,
	}
	if s.conversationID == "" {
		s.conversationID = uuid.NewString()
	}

	if len(args) == 1 {
		return s.ask(ctx, args[0])
	}
	return s.loop(ctx, cmd.InOrStdin())
}

// askSession tracks one terminal conversation.
type askSession struct {
	orch           *orchestrator.Orchestrator
	out            io.Writer
	conversationID string
	language       string
	json           bool

	// awaitingDetails is set when the last answer asked for clarification.
	awaitingDetails bool
}

func (s *askSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.ask(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *askSession) ask(ctx context.Context, question string) error {
	resp := s.orch.Process(ctx, orchestrator.Request{
		Question:                question,
		ConversationID:          s.conversationID,
		Language:                s.language,
		IsClarificationResponse: s.awaitingDetails,
	})
	s.awaitingDetails = resp.NeedsClarification()

	if s.json {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err := fmt.Fprintf(s.out, "%s\n\n", resp.Response)
	return err
}
