// Package chatsvc implements the "Wiki/Chat Services" component (spec
// §2, §6): the two chat surfaces the HTTP boundary exposes. Wiki chat
// (grounded on app/services/chat_service.py's ChatService) selects
// relevant manifest pages with internal/context and asks a completion
// model a single question/answer turn. Repo chat (grounded on
// tools/shell.py's agent wiring) runs the full ReAct loop
// (internal/reactloop) with the virtual shell tools
// (internal/shelltools) against an ingested repository. Both persist
// their turns as conversations/messages through internal/store.
package chatsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/falconwiki/falcon/internal/apperrors"
	selector "github.com/falconwiki/falcon/internal/context"
	"github.com/falconwiki/falcon/internal/reactloop"
	"github.com/falconwiki/falcon/internal/shelltools"
	"github.com/falconwiki/falcon/internal/store"
	"github.com/falconwiki/falcon/internal/wikisvc"
)

// Completer performs one non-streaming model completion for wiki
// chat. The external LLM provider is out of scope (spec §1); this is
// its narrow contract.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []reactloop.Message, question string) (string, error)
}

// Streamer is re-exported so callers wiring repo chat only need this
// package's import, not internal/reactloop directly.
type Streamer = reactloop.Streamer

const maxContextPages = 5

// Service drives both chat surfaces.
type Service struct {
	Store    *store.Store
	Wikis    *wikisvc.Service
	Complete Completer
	Stream   Streamer
}

// New constructs a Service.
func New(st *store.Store, wikis *wikisvc.Service, completer Completer, streamer Streamer) *Service {
	return &Service{Store: st, Wikis: wikis, Complete: completer, Stream: streamer}
}

// getOrCreateConversation resolves an existing conversation id or
// starts a fresh one scoped to wikiID (grounded on chat_service.py's
// get_or_create_conversation).
func (s *Service) getOrCreateConversation(ctx context.Context, wikiID, conversationID string) (string, []reactloop.Message, error) {
	if conversationID != "" {
		conv, err := s.Store.GetConversation(ctx, conversationID)
		if err != nil {
			return "", nil, err
		}
		if conv.WikiID != wikiID {
			return "", nil, apperrors.New(apperrors.InvalidInput, "conversation does not belong to this wiki")
		}
		rows, err := s.Store.ListMessages(ctx, conversationID)
		if err != nil {
			return "", nil, err
		}
		history := make([]reactloop.Message, 0, len(rows))
		for _, m := range rows {
			history = append(history, reactloop.Message{Role: m.Role, Content: m.Content})
		}
		return conversationID, history, nil
	}

	id := uuid.NewString()
	if err := s.Store.CreateConversation(ctx, id, wikiID); err != nil {
		return "", nil, err
	}
	return id, nil, nil
}

// AskWiki runs one wiki-chat turn: select relevant manifest pages,
// ask the completer, persist both turns, and return the answer plus
// the conversation id and the page slugs used as context.
func (s *Service) AskWiki(ctx context.Context, wikiID, conversationID, question string) (answer string, convID string, contextSlugs []string, err error) {
	manifest, err := s.Wikis.GetManifest(ctx, wikiID)
	if err != nil {
		return "", "", nil, err
	}

	pages := manifestPages(manifest)
	contextSlugs = selector.SelectPages(pages, question, maxContextPages)

	convID, history, err := s.getOrCreateConversation(ctx, wikiID, conversationID)
	if err != nil {
		return "", "", nil, err
	}

	systemPrompt := buildWikiSystemPrompt(wikiID, pages, contextSlugs)
	answer, err = s.Complete.Complete(ctx, systemPrompt, history, question)
	if err != nil {
		return "", "", nil, apperrors.Wrap(apperrors.Agent, "chat completion failed", err)
	}

	userMsgID := uuid.NewString()
	if err := s.Store.AppendMessage(ctx, userMsgID, convID, "user", question, nil); err != nil {
		return "", "", nil, err
	}
	contextJSON, _ := json.Marshal(contextSlugs)
	contextStr := string(contextJSON)
	assistantMsgID := uuid.NewString()
	if err := s.Store.AppendMessage(ctx, assistantMsgID, convID, "assistant", answer, &contextStr); err != nil {
		return "", "", nil, err
	}

	return answer, convID, contextSlugs, nil
}

// History returns a wiki conversation's messages in order, spec §6's
// GET /api/wikis/{id}/chat/{conv}.
func (s *Service) History(ctx context.Context, conversationID string) ([]store.Message, error) {
	return s.Store.ListMessages(ctx, conversationID)
}

// RunRepoChat drives the full ReAct loop (spec §4.8) against an
// ingested repo's virtual shell tools, the ingestion-facing chat
// surface's POST /{id}/chat.
func (s *Service) RunRepoChat(ctx context.Context, repoID, question string, history []reactloop.Message) <-chan reactloop.Event {
	tools := shelltools.New(s.Store, repoID)
	dispatcher := toolDispatcher{tools: tools}
	return reactloop.Run(ctx, s.Stream, dispatcher, shellToolSchemas(), repoSystemPrompt, history, question)
}

const repoSystemPrompt = "You are exploring a single ingested repository through list_files, read_file, and search_code. Use them to answer the question; never invent file contents."

// toolDispatcher adapts shelltools.Tools to reactloop.Dispatcher.
type toolDispatcher struct {
	tools *shelltools.Tools
}

func (d toolDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "list_files":
		return d.tools.ListFiles(ctx, stringArg(args, "path"))
	case "read_file":
		return d.tools.ReadFile(ctx, stringArg(args, "path"), intArg(args, "start_line"), intArg(args, "end_line"))
	case "search_code":
		return d.tools.SearchCode(ctx, stringArg(args, "pattern"), stringArg(args, "glob"))
	default:
		return "", apperrors.New(apperrors.Execution, fmt.Sprintf("unknown tool: %s", name))
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// shellToolSchemas describes the three virtual shell tools to the
// model (spec §4.8 step 1).
func shellToolSchemas() []reactloop.ToolSchema {
	return []reactloop.ToolSchema{
		{
			Name:        "list_files",
			Description: "List files and directories under a path, or match a glob (supports *, ?, **).",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "read_file",
			Description: "Read a file's contents with 1-indexed line numbers. A negative start_line reads the last |start_line| lines.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":       map[string]any{"type": "string"},
					"start_line": map[string]any{"type": "integer"},
					"end_line":   map[string]any{"type": "integer"},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "search_code",
			Description: "Search file contents with a regex pattern, optionally narrowed by a glob.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{"type": "string"},
					"glob":    map[string]any{"type": "string"},
				},
				"required": []string{"pattern"},
			},
		},
	}
}

// manifestPages extracts the "pages" array of a raw manifest map into
// internal/context's scoring shape.
func manifestPages(manifest map[string]any) []selector.Page {
	raw, _ := manifest["pages"].([]any)
	pages := make([]selector.Page, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pages = append(pages, selector.Page{
			Slug:        stringField(m, "slug"),
			Title:       stringField(m, "title"),
			Summary:     stringField(m, "summary"),
			KeyExports:  stringSliceField(m, "key_exports"),
			SourceFiles: stringSliceField(m, "source_files"),
		})
	}
	return pages
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// buildWikiSystemPrompt names the pages selected as context so the
// completer knows which slugs it may cite.
func buildWikiSystemPrompt(wikiID string, pages []selector.Page, selected []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are answering questions about wiki %s using only the selected pages below.\n", wikiID)
	bySlug := make(map[string]selector.Page, len(pages))
	for _, p := range pages {
		bySlug[p.Slug] = p
	}
	for _, slug := range selected {
		p := bySlug[slug]
		fmt.Fprintf(&b, "\n## %s (%s)\n%s\n", p.Title, p.Slug, p.Summary)
	}
	if len(selected) == 0 {
		b.WriteString("\nNo wiki page matched the question closely; answer from general knowledge and say so.\n")
	}
	return b.String()
}
