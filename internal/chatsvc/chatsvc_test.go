package chatsvc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falconwiki/falcon/internal/reactloop"
	"github.com/falconwiki/falcon/internal/store"
	"github.com/falconwiki/falcon/internal/wikisvc"
)

type fakeCompleter struct {
	lastSystemPrompt string
	lastHistory      []reactloop.Message
	answer           string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt string, history []reactloop.Message, question string) (string, error) {
	f.lastSystemPrompt = systemPrompt
	f.lastHistory = history
	if f.answer != "" {
		return f.answer, nil
	}
	return "answer to: " + question, nil
}

func setupCompletedWiki(t *testing.T) (*Service, string) {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	st, err := store.Open(ctx, filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	storageRoot := filepath.Join(dir, "wiki_storage")
	wikis := wikisvc.New(st, storageRoot)

	result, err := wikis.CreateWiki(ctx, "https://github.com/owner/repo", "main")
	require.NoError(t, err)

	wiki, err := st.GetWiki(ctx, result.WikiID)
	require.NoError(t, err)
	require.NoError(t, st.UpdateWikiStatus(ctx, result.WikiID, store.WikiCompleted))

	manifestDir := filepath.Join(storageRoot, wiki.StoragePath)
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	manifest := map[string]any{
		"pages": []map[string]any{
			{"slug": "auth", "title": "Authentication", "summary": "how login works", "key_exports": []string{}, "source_files": []string{}},
			{"slug": "deploy", "title": "Deployment", "summary": "docker and kubernetes notes", "key_exports": []string{}, "source_files": []string{}},
		},
	}
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(manifestDir, "manifest.json"), data, 0o644))

	completer := &fakeCompleter{}
	svc := New(st, wikis, completer, nil)
	return svc, result.WikiID
}

func TestAskWiki_SelectsContextAndPersistsMessages(t *testing.T) {
	svc, wikiID := setupCompletedWiki(t)
	ctx := context.Background()

	answer, convID, contextSlugs, err := svc.AskWiki(ctx, wikiID, "", "how does authentication work")
	require.NoError(t, err)
	require.NotEmpty(t, convID)
	require.Equal(t, []string{"auth"}, contextSlugs)
	require.Contains(t, answer, "how does authentication work")

	history, err := svc.History(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "user", history[0].Role)
	require.Equal(t, "how does authentication work", history[0].Content)
	require.Equal(t, "assistant", history[1].Role)
	require.NotNil(t, history[1].ContextPages)
	require.Contains(t, *history[1].ContextPages, "auth")
}

func TestAskWiki_ReusesExistingConversationHistory(t *testing.T) {
	svc, wikiID := setupCompletedWiki(t)
	ctx := context.Background()

	_, convID, _, err := svc.AskWiki(ctx, wikiID, "", "how does authentication work")
	require.NoError(t, err)

	completer := svc.Complete.(*fakeCompleter)
	_, convID2, _, err := svc.AskWiki(ctx, wikiID, convID, "what about deployment")
	require.NoError(t, err)
	require.Equal(t, convID, convID2)
	require.Len(t, completer.lastHistory, 2, "second turn should see the first turn's user+assistant messages as history")
}

func TestAskWiki_RejectsConversationFromAnotherWiki(t *testing.T) {
	svc, wikiID := setupCompletedWiki(t)
	ctx := context.Background()

	other, err := svc.Wikis.CreateWiki(ctx, "https://github.com/owner/other-repo", "main")
	require.NoError(t, err)
	otherWikiID := other.WikiID
	require.NotEqual(t, wikiID, otherWikiID)

	// Build a conversation under svc's store scoped to a wiki ID that
	// isn't wikiID, then try to use it against wikiID.
	foreignConvID := "foreign-conv"
	require.NoError(t, svc.Store.CreateConversation(ctx, foreignConvID, otherWikiID))

	_, _, _, err = svc.AskWiki(ctx, wikiID, foreignConvID, "question")
	require.Error(t, err)
}
