package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"github.com/dominicdesy/intelia-expert/internal/conversation"
	"github.com/dominicdesy/intelia-expert/internal/orchestrator"
	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
		assert.NotEmpty(t, cmd.Short, cmd.Name())
	}
	for _, want := range []string{"serve", "ask", "ingest", "purge", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "expertd dev")
}

func TestAskCmd_OfflineAnswer(t *testing.T) {
	t.Setenv("EXPERT_VECTORSTORE_PROVIDER", "none")
	t.Setenv("EXPERT_LLM_PROVIDER", "none")
	t.Setenv("EXPERT_LOGGING_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"ask", "--language", "fr", "Ross 308 à 21 jours, quelle température ?"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		askLanguage = ""
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Je n'ai pas trouvé de référence précise pour votre question (Ross 308")
}

func TestIngestCmd_RequiresVectorStore(t *testing.T) {
	t.Setenv("EXPERT_VECTORSTORE_PROVIDER", "none")
	t.Setenv("EXPERT_LOGGING_LEVEL", "error")

	rootCmd.SetArgs([]string{"ingest", t.TempDir()})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest into")
}

func newTestSession(t *testing.T, out *bytes.Buffer) *askSession {
	t.Helper()
	orch, err := orchestrator.New(config.Default().Orchestrator, orchestrator.Deps{
		Manager: conversation.NewManager(nil, 10, nil),
	})
	require.NoError(t, err)
	return &askSession{orch: orch, out: out, conversationID: "terminal", language: "fr"}
}

func TestAskSession_ClarificationReply(t *testing.T) {
	var out bytes.Buffer
	s := newTestSession(t, &out)

	in := strings.NewReader("Quel est le poids normal ?\n\nRoss 308 mâles, 21 jours\n")
	require.NoError(t, s.loop(context.Background(), in))

	answers := strings.Split(strings.TrimSpace(out.String()), "\n\n")
	require.GreaterOrEqual(t, len(answers), 2)
	assert.True(t, strings.HasPrefix(answers[0], sufficiency.IntroMessage("fr")), answers[0])
	assert.Contains(t, answers[1], "Ross 308")
	assert.Contains(t, answers[1], "21 days")
	assert.False(t, s.awaitingDetails)

	stats := s.orch.Stats()
	assert.Equal(t, int64(2), stats.Requests)
	assert.Equal(t, int64(1), stats.Reprocessings)
}

func TestAskSession_JSON(t *testing.T) {
	var out bytes.Buffer
	s := newTestSession(t, &out)
	s.json = true

	require.NoError(t, s.ask(context.Background(), "Quel est le poids normal ?"))

	var resp orchestrator.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "terminal", resp.ConversationID)
	assert.NotEmpty(t, resp.ClarificationQuestions)
	assert.True(t, s.awaitingDetails)
}
